package hostfuncs

import (
	"context"
	"sync"
)

// QueueRequest addresses a named queue of a queue module instance.
// An empty Queue name is the default queue. LIFO applies when the queue is
// created by its first put.
type QueueRequest struct {
	Item    any    `json:"item,omitempty"`
	Queue   string `json:"queue,omitempty"`
	MaxSize int    `json:"maxsize,omitempty"`
	LIFO    bool   `json:"lifo,omitempty"`
}

// QueueResponse reports the queue state after an operation.
type QueueResponse struct {
	Item  any  `json:"item,omitempty"`
	Size  int  `json:"size"`
	Empty bool `json:"empty"`
}

type namedQueue struct {
	items   []any
	maxSize int
	lifo    bool
}

type queueState struct {
	queues map[string]*namedQueue
	mu     sync.Mutex
}

func (s *queueState) get(req QueueRequest, create bool) *namedQueue {
	q, ok := s.queues[req.Queue]
	if !ok && create {
		q = &namedQueue{maxSize: req.MaxSize, lifo: req.LIFO}
		s.queues[req.Queue] = q
	}
	return q
}

func queueResponse(q *namedQueue, item any) QueueResponse {
	if q == nil {
		return QueueResponse{Empty: true, Item: item}
	}
	return QueueResponse{Item: item, Size: len(q.items), Empty: len(q.items) == 0}
}

// QueueBundle returns the members of a queue module instance. Operations
// never block: get on an empty queue and put on a full one fail.
func QueueBundle() HostFuncBundle {
	s := &queueState{queues: make(map[string]*namedQueue)}
	op := func(fn func(req QueueRequest) (QueueResponse, error)) ByteHandler {
		return NewJSONHandler(func(_ context.Context, req QueueRequest) (QueueResponse, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			return fn(req)
		})
	}
	return NewBundle(map[string]ByteHandler{
		"put": op(func(req QueueRequest) (QueueResponse, error) {
			q := s.get(req, true)
			if q.maxSize > 0 && len(q.items) >= q.maxSize {
				return QueueResponse{}, argErrorf("queue %q is full", req.Queue)
			}
			q.items = append(q.items, req.Item)
			return queueResponse(q, nil), nil
		}),
		"get": op(func(req QueueRequest) (QueueResponse, error) {
			q := s.get(req, false)
			if q == nil || len(q.items) == 0 {
				return QueueResponse{}, argErrorf("queue %q is empty", req.Queue)
			}
			var item any
			if q.lifo {
				item = q.items[len(q.items)-1]
				q.items = q.items[:len(q.items)-1]
			} else {
				item = q.items[0]
				q.items = q.items[1:]
			}
			return queueResponse(q, item), nil
		}),
		"qsize": op(func(req QueueRequest) (QueueResponse, error) {
			return queueResponse(s.get(req, false), nil), nil
		}),
		"clear": op(func(req QueueRequest) (QueueResponse, error) {
			delete(s.queues, req.Queue)
			return queueResponse(nil, nil), nil
		}),
	})
}

func queueModule() ModuleDef {
	return ModuleDef{
		Name:     "queue",
		Doc:      "in-memory FIFO and LIFO queues",
		Requests: requestsFor(QueueRequest{}, "put", "get", "qsize", "clear"),
		New: func(context.Context) (HostFuncBundle, error) {
			return QueueBundle(), nil
		},
	}
}
