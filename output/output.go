// 控制循环输出：将每个tick的状态与紧急模式激活记录写入MongoDB
package output

import (
	"context"
	"sync"
	"time"

	"git.fiblab.net/general/common/v2/mongoutil"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/entity"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/entity/lane"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/utils/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	k8sclock "k8s.io/utils/clock"
)

const (
	queueSize    = 256
	writeTimeout = 5 * time.Second
)

// Inserter 写入单条记录的集合接口，*mongo.Collection 满足该接口
type Inserter interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

type LaneDoc struct {
	Lane    string `bson:"lane"`
	Light   string `bson:"light"`
	Density int    `bson:"density"`
	Count   int    `bson:"count"`
}

// TickDoc 单个tick之后的状态记录
type TickDoc struct {
	Kind            string    `bson:"kind"`
	Tick            int64     `bson:"tick"`
	Time            time.Time `bson:"time"`
	ActiveLane      string    `bson:"active_lane"`
	RemainingTime   int32     `bson:"remaining_time"`
	EmergencyActive bool      `bson:"emergency_active"`
	Lanes           []LaneDoc `bson:"lanes"`
}

// EmergencyDoc 紧急模式激活记录
type EmergencyDoc struct {
	Kind string    `bson:"kind"`
	ID   string    `bson:"id"`
	Time time.Time `bson:"time"`
	Lane string    `bson:"lane"`
}

// Recorder 异步记录器
// 功能：作为控制循环观察者接收状态，由后台协程写入集合
// 说明：队列满时丢弃记录并告警，写入失败只记录日志，从不阻塞控制循环
type Recorder struct {
	col    Inserter
	clock  k8sclock.PassiveClock
	client *mongo.Client

	queue     chan any
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New 按配置连接MongoDB并创建记录器，URI为空时返回nil
func New(c config.Output, clock k8sclock.PassiveClock) *Recorder {
	if c.URI == "" {
		return nil
	}
	client := mongoutil.NewClient(c.URI)
	r := NewWithInserter(client.Database(c.DB).Collection(c.Col), clock)
	r.client = client
	log.Infof("recording ticks to %s.%s", c.DB, c.Col)
	return r
}

// NewWithInserter 使用给定集合创建记录器
func NewWithInserter(col Inserter, clock k8sclock.PassiveClock) *Recorder {
	r := &Recorder{
		col:   col,
		clock: clock,
		queue: make(chan any, queueSize),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

func (r *Recorder) OnTick(tick int64, state entity.State) {
	r.enqueue(TickDoc{
		Kind:            "tick",
		Tick:            tick,
		Time:            r.clock.Now(),
		ActiveLane:      state.ActiveLane.String(),
		RemainingTime:   state.RemainingTime,
		EmergencyActive: state.EmergencyActive,
		Lanes: lo.Map(state.Lanes, func(l lane.Lane, _ int) LaneDoc {
			return LaneDoc{
				Lane:    l.ID.String(),
				Light:   lane.LightName(l.Light),
				Density: l.Density,
				Count:   l.VehicleCount,
			}
		}),
	})
}

func (r *Recorder) OnEmergency(ack entity.Ack, state entity.State) {
	r.enqueue(EmergencyDoc{
		Kind: "emergency",
		ID:   ack.ID.String(),
		Time: r.clock.Now(),
		Lane: ack.Lane.String(),
	})
}

func (r *Recorder) enqueue(doc any) {
	select {
	case r.queue <- doc:
	default:
		log.Warnf("output queue full, drop record %T", doc)
	}
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for doc := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if _, err := r.col.InsertOne(ctx, doc); err != nil {
			log.Warnf("failed to write %T: %v", doc, err)
		}
		cancel()
	}
}

// Close 写完队列中的记录后断开连接
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		close(r.queue)
		r.wg.Wait()
		if r.client != nil {
			if err := r.client.Disconnect(context.Background()); err != nil {
				log.Warnf("failed to disconnect: %v", err)
			}
		}
	})
}
