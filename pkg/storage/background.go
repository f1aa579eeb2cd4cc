package storage

import (
	"time"

	"go.uber.org/zap"
)

// StartBackgroundWorkers starts the periodic snapshot worker when a data file
// and a save interval are configured
func (se *StorageEngine) StartBackgroundWorkers() {
	if !se.backgroundSave || se.dataFile == "" {
		return
	}

	se.backgroundWg.Add(1)
	go func() {
		defer se.backgroundWg.Done()
		ticker := time.NewTicker(se.saveInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				se.saveDirtyCollections()
			case <-se.stopChan:
				return
			}
		}
	}()
}

// StopBackgroundWorkers stops background workers
func (se *StorageEngine) StopBackgroundWorkers() {
	select {
	case <-se.stopChan:
		// Channel already closed, do nothing
	default:
		close(se.stopChan)
	}
	se.backgroundWg.Wait()
}

// saveDirtyCollections writes a snapshot when any collection changed since
// the last one
func (se *StorageEngine) saveDirtyCollections() {
	se.mu.RLock()
	var dirty []*collectionData
	for _, coll := range se.collections {
		coll.mu.RLock()
		if coll.dirty {
			dirty = append(dirty, coll)
		}
		coll.mu.RUnlock()
	}
	se.mu.RUnlock()

	if len(dirty) == 0 {
		return
	}
	if err := se.SaveToFile(se.dataFile); err != nil {
		se.logger.Warn("background save failed", zap.String("file", se.dataFile), zap.Error(err))
		return
	}
	for _, coll := range dirty {
		coll.mu.Lock()
		coll.dirty = false
		coll.mu.Unlock()
	}
}
