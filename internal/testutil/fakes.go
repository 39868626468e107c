package testutil

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"race-photos-backend/internal/email"
	"race-photos-backend/internal/services"
)

var errDuplicateSession = errors.New("duplicate key value violates unique constraint \"payments_stripe_session_id_key\"")

// StorageBaseURL prefixes every URL issued by FakeStorage.
const StorageBaseURL = "https://storage.test/object/sign/photos/"

// FakeStorage is an in-memory object store issuing numbered signed URLs.
type FakeStorage struct {
	mu      sync.Mutex
	Objects map[string][]byte
	Removed []string
	signed  int

	UploadErr error
	SignErr   error
	RemoveErr error
}

func NewFakeStorage() *FakeStorage {
	return &FakeStorage{Objects: make(map[string][]byte)}
}

func (s *FakeStorage) Upload(ctx context.Context, path, contentType string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UploadErr != nil {
		return s.UploadErr
	}
	if _, ok := s.Objects[path]; ok {
		return fmt.Errorf("object %s already exists", path)
	}
	s.Objects[path] = data
	return nil
}

func (s *FakeStorage) CreateSignedURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SignErr != nil {
		return "", s.SignErr
	}
	s.signed++
	return fmt.Sprintf("%s%s?token=%d", StorageBaseURL, path, s.signed), nil
}

func (s *FakeStorage) Remove(ctx context.Context, paths []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.RemoveErr != nil {
		return s.RemoveErr
	}
	for _, p := range paths {
		delete(s.Objects, p)
		s.Removed = append(s.Removed, p)
	}
	return nil
}

func (s *FakeStorage) ObjectPath(url string) (string, bool) {
	if !strings.HasPrefix(url, StorageBaseURL) {
		return "", false
	}
	path := strings.TrimPrefix(url, StorageBaseURL)
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path, path != ""
}

// SignedCount is how many URLs have been issued.
func (s *FakeStorage) SignedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signed
}

// FakeProvider records checkout session requests. Webhooks are parsed by
// ParseFunc when set.
type FakeProvider struct {
	mu       sync.Mutex
	Requests []services.CheckoutSessionRequest
	Err      error

	ParseFunc func(payload []byte, signature string) (*services.WebhookEvent, error)
}

func (p *FakeProvider) CreateCheckoutSession(ctx context.Context, req services.CheckoutSessionRequest) (*services.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	p.Requests = append(p.Requests, req)
	id := fmt.Sprintf("cs_test_%d", len(p.Requests))
	return &services.CheckoutSession{ID: id, URL: "https://checkout.stripe.test/" + id}, nil
}

func (p *FakeProvider) ParseWebhook(payload []byte, signature string) (*services.WebhookEvent, error) {
	if p.ParseFunc == nil {
		return nil, services.ErrWebhookNotConfigured
	}
	return p.ParseFunc(payload, signature)
}

// FakeMailer records sent messages and fails the first FailTimes sends,
// returning FailErr when it is set.
type FakeMailer struct {
	mu        sync.Mutex
	Sent      []email.Message
	Calls     int
	FailTimes int
	FailErr   error
}

func (m *FakeMailer) Send(ctx context.Context, msg email.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Calls <= m.FailTimes {
		if m.FailErr != nil {
			return "", m.FailErr
		}
		return "", errors.New("email provider unavailable")
	}
	m.Sent = append(m.Sent, msg)
	return fmt.Sprintf("msg_%d", len(m.Sent)), nil
}

// FakeFetcher serves object bytes out of a FakeStorage. URLs listed in
// Broken fail regardless.
type FakeFetcher struct {
	Storage *FakeStorage

	mu     sync.Mutex
	Broken map[string]bool
	Calls  []string
}

func (f *FakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, url)
	broken := f.Broken[url]
	f.mu.Unlock()
	if broken {
		return nil, fmt.Errorf("fetch %s: status 400", url)
	}

	path, ok := f.Storage.ObjectPath(url)
	if !ok {
		return nil, fmt.Errorf("fetch %s: not found", url)
	}
	f.Storage.mu.Lock()
	defer f.Storage.mu.Unlock()
	data, ok := f.Storage.Objects[path]
	if !ok {
		return nil, fmt.Errorf("fetch %s: not found", url)
	}
	return data, nil
}

// Break makes url fail on fetch.
func (f *FakeFetcher) Break(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Broken == nil {
		f.Broken = make(map[string]bool)
	}
	f.Broken[url] = true
}
