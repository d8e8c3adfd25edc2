package syncer

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"time"

	gos3 "photosync/pkg/s3"
)

// fakeStore is an in-memory ObjectStore. getCalls counts GetObject calls per
// key so tests can prove that skip-if-exists performs no fetch.
type fakeStore struct {
	mu      sync.Mutex
	objects []fakeObject

	listErr  error
	headErr  error
	getErrs  map[string][]error
	getCalls map[string]int
}

type fakeObject struct {
	key         string
	contentType string
	data        []byte
	modified    time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		getErrs:  make(map[string][]error),
		getCalls: make(map[string]int),
	}
}

func (s *fakeStore) add(key, contentType string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects = append(s.objects, fakeObject{
		key:         key,
		contentType: contentType,
		data:        data,
		modified:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
}

// failNext queues errs to be returned by successive GetObject calls for key
// before downloads start succeeding.
func (s *fakeStore) failNext(key string, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getErrs[key] = append(s.getErrs[key], errs...)
}

func (s *fakeStore) calls(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getCalls[key]
}

func (s *fakeStore) ListObjects(_ context.Context, _, prefix string) ([]gos3.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}

	var infos []gos3.ObjectInfo
	for _, obj := range s.objects {
		if prefix != "" && !strings.HasPrefix(obj.key, prefix) {
			continue
		}
		infos = append(infos, gos3.ObjectInfo{
			Key:          obj.key,
			Size:         int64(len(obj.data)),
			LastModified: obj.modified,
		})
	}
	return infos, nil
}

func (s *fakeStore) HeadContentType(_ context.Context, _, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.headErr != nil {
		return "", s.headErr
	}
	for _, obj := range s.objects {
		if obj.key == key {
			return obj.contentType, nil
		}
	}
	return "", nil
}

func (s *fakeStore) GetObject(_ context.Context, _, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.getCalls[key]++
	if errs := s.getErrs[key]; len(errs) > 0 {
		err := errs[0]
		s.getErrs[key] = errs[1:]
		return nil, err
	}

	for _, obj := range s.objects {
		if obj.key == key {
			return io.NopCloser(bytes.NewReader(obj.data)), nil
		}
	}
	return nil, &notFoundError{key: key}
}

type notFoundError struct{ key string }

func (e *notFoundError) Error() string { return "no such key: " + e.key }

// timeoutError satisfies net.Error and is classified transient.
type timeoutError struct{}

func (timeoutError) Error() string   { return "request timed out" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// fakePublisher records published events.
type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	subject string
	payload any
}

func (p *fakePublisher) Publish(_ context.Context, subj string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{subject: subj, payload: v})
	return nil
}

func (p *fakePublisher) bySubject(subj string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, evt := range p.events {
		if evt.subject == subj {
			out = append(out, evt)
		}
	}
	return out
}
