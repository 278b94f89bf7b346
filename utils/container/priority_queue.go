package container

import "container/heap"

// item 优先队列中单个元素
// 功能：表示优先队列中的一个元素，包含值、优先级与插入序号
// 说明：插入序号用于在优先级相同时保持先入先出，保证弹出顺序可复现
type item[T any] struct {
	Value    T       // 元素的值（任意类型）
	Priority float64 // 元素在队列中的优先级（越小越优先）
	seq      int     // 插入序号
	index    int     // 项在堆中的索引，由 heap.Interface 方法维护
}

// priorityQueue 实现了 heap.Interface
type priorityQueue[T any] []*item[T]

func (pq priorityQueue[T]) Len() int { return len(pq) }

// Less 优先级数值小者优先，优先级相同时插入早者优先
func (pq priorityQueue[T]) Less(i, j int) bool {
	if pq[i].Priority != pq[j].Priority {
		return pq[i].Priority < pq[j].Priority
	}
	return pq[i].seq < pq[j].seq
}

func (pq priorityQueue[T]) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue[T]) Push(x any) {
	n := len(*pq)
	item := x.(*item[T])
	item.index = n
	*pq = append(*pq, item)
}

func (pq *priorityQueue[T]) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // 避免内存泄漏
	item.index = -1 // 为了安全起见
	*pq = old[0 : n-1]
	return item
}

// PriorityQueue 稳定的最小优先队列
// 功能：按优先级弹出元素，优先级相同的元素按插入顺序弹出
type PriorityQueue[T any] struct {
	queue priorityQueue[T]
	seq   int
}

// NewPriorityQueue 创建优先队列
func NewPriorityQueue[T any]() *PriorityQueue[T] {
	return &PriorityQueue[T]{queue: make(priorityQueue[T], 0)}
}

// Len 获取当前队列长度
func (q *PriorityQueue[T]) Len() int {
	return len(q.queue)
}

// First 获取优先级数值最小的元素（不移除）
// 说明：需要在Heapify之后或仅使用HeapPush时调用
func (q *PriorityQueue[T]) First() T {
	return q.queue[0].Value
}

// Push 加入元素（简单添加）
// 功能：向队列中追加元素，不维护堆结构
// 说明：批量添加后需要调用Heapify()来重新构建堆结构
func (q *PriorityQueue[T]) Push(value T, priority float64) {
	q.queue = append(q.queue, &item[T]{
		Value:    value,
		Priority: priority,
		seq:      q.next(),
	})
}

// Heapify 重新构建堆
func (q *PriorityQueue[T]) Heapify() {
	heap.Init(&q.queue)
}

// HeapPush 加入元素（堆操作）
func (q *PriorityQueue[T]) HeapPush(value T, priority float64) {
	heap.Push(&q.queue, &item[T]{
		Value:    value,
		Priority: priority,
		seq:      q.next(),
	})
}

// HeapPop 弹出优先级数值最小的元素（堆操作）
// 返回：value-元素值，priority-元素优先级
func (q *PriorityQueue[T]) HeapPop() (value T, priority float64) {
	item := heap.Pop(&q.queue).(*item[T])
	return item.Value, item.Priority
}

func (q *PriorityQueue[T]) next() int {
	q.seq++
	return q.seq
}
