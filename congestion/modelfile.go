package congestion

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// 等待文件写入稳定后再重新加载
const debounceDelay = 250 * time.Millisecond

// ModelFile 本地模型文件
// 功能：持有当前加载的随机森林，文件变化时自动重新加载
// 说明：加载失败时保持不可用（或保留上一次成功加载的模型），从不终止进程
type ModelFile struct {
	path    string
	current atomic.Pointer[Forest]
}

// OpenModelFile 打开模型文件
// 功能：尝试加载模型，失败时记录警告并返回不可用的模型
func OpenModelFile(path string) *ModelFile {
	m := &ModelFile{path: filepath.Clean(path)}
	if err := m.Reload(); err != nil {
		log.Warnf("congestion model not loaded, fallback estimate in use: %v", err)
	}
	return m
}

// Reload 重新加载模型文件，失败时保留当前模型
func (m *ModelFile) Reload() error {
	f, err := LoadForest(m.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPredictorUnavailable, err)
	}
	m.current.Store(f)
	log.Infof("congestion model loaded from %s (%d trees)", m.path, len(f.Trees))
	return nil
}

// Loaded 是否已有可用模型
func (m *ModelFile) Loaded() bool {
	return m.current.Load() != nil
}

func (m *ModelFile) Predict(ctx context.Context, features Features) (int, error) {
	f := m.current.Load()
	if f == nil {
		return 0, fmt.Errorf("%w: no model loaded from %s", ErrPredictorUnavailable, m.path)
	}
	return f.Predict(ctx, features)
}

// Watch 监听模型文件变化并自动重新加载
// 功能：监听模型所在目录，文件被写入或创建时（去抖后）重新加载，成功后调用onReload
// 说明：ctx结束时停止监听；监听目录以便处理先删除再创建的替换方式
func (m *ModelFile) Watch(ctx context.Context, onReload func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create model watcher: %w", err)
	}
	dir := filepath.Dir(m.path)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}

	go func() {
		defer w.Close()

		var debounceTimer *time.Timer
		defer func() {
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
		}()

		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != m.path || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				log.Debugf("model file changed: %v", ev)
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDelay, func() {
					if err := m.Reload(); err != nil {
						log.Warnf("failed to reload congestion model: %v", err)
						return
					}
					if onReload != nil {
						onReload()
					}
				})
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warnf("model watcher failed: %v", err)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}
