package hxglue

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
	"go.uber.org/zap"
)

const (
	counterPrefix  = "c:"
	decisionPrefix = "d:"
)

type recordMeta struct {
	key  string
	size int64
}

// journal persists swap decisions in leveldb. Counters live in memory and
// are written through; decision records are appended by a single writer
// goroutine and the oldest are evicted once maxBytes is exceeded.
type journal struct {
	maxBytes int64

	db      *leveldb.DB
	log     *zap.Logger
	dropLog *rateLimitedLogger

	mu        sync.Mutex
	counters  map[int]StatusCounters
	records   []recordMeta // oldest first
	totalSize int64
	closed    bool

	ops  chan Decision
	done chan struct{}
}

func openJournal(path string, maxBytes int64, log *zap.Logger) (*journal, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	j := &journal{
		maxBytes: maxBytes,
		db:       db,
		log:      log,
		dropLog:  newRateLimitedLogger(log, time.Minute),
		counters: map[int]StatusCounters{},
		ops:      make(chan Decision, 1024),
		done:     make(chan struct{}),
	}
	if err := j.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	go j.writerLoop()
	return j, nil
}

func (j *journal) load() error {
	it := j.db.NewIterator(util.BytesPrefix([]byte(counterPrefix)), nil)
	counters := map[int]StatusCounters{}
	for it.Next() {
		status, err := strconv.Atoi(string(bytes.TrimPrefix(it.Key(), []byte(counterPrefix))))
		if err != nil {
			continue
		}
		var c StatusCounters
		if err := decodeGob(it.Value(), &c); err != nil {
			continue
		}
		counters[status] = c
	}
	it.Release()
	if err := it.Error(); err != nil {
		return err
	}

	// keys sort by timestamp, so iteration order is age order
	it = j.db.NewIterator(util.BytesPrefix([]byte(decisionPrefix)), nil)
	var records []recordMeta
	var total int64
	for it.Next() {
		size := int64(len(it.Value()))
		records = append(records, recordMeta{key: string(it.Key()), size: size})
		total += size
	}
	it.Release()
	if err := it.Error(); err != nil {
		return err
	}

	j.mu.Lock()
	j.counters = counters
	j.records = records
	j.totalSize = total
	j.mu.Unlock()
	return nil
}

// Record counts d immediately and queues it for persistence. When the
// queue is full the record is dropped; the counters still include it.
func (j *journal) Record(d Decision) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return
	}

	c := j.counters[d.Status]
	if d.Overridden {
		c.Overridden++
	} else {
		c.Passed++
	}
	c.LastAt = d.At
	j.counters[d.Status] = c

	select {
	case j.ops <- d:
	default:
		j.dropLog.Warn("journal queue full, dropping decision",
			zap.String("path", d.Path), zap.Int("status", d.Status))
	}
}

// Counters returns a copy of the per-status counters.
func (j *journal) Counters() map[int]StatusCounters {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make(map[int]StatusCounters, len(j.counters))
	for k, v := range j.counters {
		out[k] = v
	}
	return out
}

func (j *journal) TotalSize() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.totalSize
}

func (j *journal) RecordCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.records)
}

// Recent returns up to n persisted decisions, newest first.
func (j *journal) Recent(n int) ([]Decision, error) {
	if n <= 0 {
		return nil, nil
	}
	it := j.db.NewIterator(util.BytesPrefix([]byte(decisionPrefix)), nil)
	defer it.Release()

	out := make([]Decision, 0, n)
	for ok := it.Last(); ok && len(out) < n; ok = it.Prev() {
		var d Decision
		if err := decodeGob(it.Value(), &d); err != nil {
			continue
		}
		out = append(out, d)
	}
	return out, it.Error()
}

func (j *journal) close() {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return
	}
	j.closed = true
	close(j.ops)
	j.mu.Unlock()

	<-j.done
	_ = j.db.Close()
}

func (j *journal) writerLoop() {
	defer close(j.done)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for d := range j.ops {
		if err := j.apply(d); err != nil {
			j.log.Error("journal write failed", zap.Error(err))
		}
	}
}

func decisionKey(d Decision) string {
	return fmt.Sprintf("%s%020d:%s", decisionPrefix, d.At, d.RequestID)
}

func (j *journal) apply(d Decision) error {
	rb, err := encodeGob(d)
	if err != nil {
		return err
	}

	j.mu.Lock()
	c := j.counters[d.Status]
	j.mu.Unlock()
	cb, err := encodeGob(c)
	if err != nil {
		return err
	}

	key := decisionKey(d)
	batch := new(leveldb.Batch)
	batch.Put([]byte(key), rb)
	batch.Put([]byte(counterPrefix+strconv.Itoa(d.Status)), cb)
	if err := j.db.Write(batch, nil); err != nil {
		return err
	}

	size := int64(len(rb))
	j.mu.Lock()
	j.records = append(j.records, recordMeta{key: key, size: size})
	j.totalSize += size
	over := j.maxBytes > 0 && j.totalSize > j.maxBytes
	j.mu.Unlock()

	if over {
		return j.evictOldest()
	}
	return nil
}

// evictOldest drops the oldest tenth of the decision records.
func (j *journal) evictOldest() error {
	j.mu.Lock()
	n := len(j.records) / 10
	if n < 1 {
		n = 1
	}
	if n > len(j.records) {
		n = len(j.records)
	}
	victims := append([]recordMeta(nil), j.records[:n]...)
	j.mu.Unlock()

	batch := new(leveldb.Batch)
	for _, v := range victims {
		batch.Delete([]byte(v.key))
	}
	if err := j.db.Write(batch, nil); err != nil {
		return err
	}

	var freed int64
	for _, v := range victims {
		freed += v.size
	}
	j.mu.Lock()
	j.records = j.records[n:]
	j.totalSize -= freed
	j.mu.Unlock()
	return nil
}

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}
