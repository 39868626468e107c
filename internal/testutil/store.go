// Package testutil provides in-memory stand-ins for the database and the
// external providers.
package testutil

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"race-photos-backend/internal/models"
)

// MemoryStore implements services.Store in memory with the same conflict and
// transition rules as the Postgres schema.
type MemoryStore struct {
	mu sync.Mutex

	photos     map[uuid.UUID]models.Photo
	selections map[selectionKey]models.PhotoSelection
	access     map[selectionKey]models.PhotoAccess
	surveys    map[models.BibNumber]models.SurveyResponse
	payments   map[uuid.UUID]models.Payment
	orderItems []models.OrderItem

	// Err, when set for a method name, is returned by that method.
	Err map[string]error

	now func() time.Time
}

type selectionKey struct {
	bib     models.BibNumber
	photoID uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		photos:     make(map[uuid.UUID]models.Photo),
		selections: make(map[selectionKey]models.PhotoSelection),
		access:     make(map[selectionKey]models.PhotoAccess),
		surveys:    make(map[models.BibNumber]models.SurveyResponse),
		payments:   make(map[uuid.UUID]models.Payment),
		Err:        make(map[string]error),
		now:        time.Now,
	}
}

// SetNow overrides the clock used for timestamps.
func (m *MemoryStore) SetNow(fn func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = fn
}

// FailOn makes method return err until cleared with a nil err.
func (m *MemoryStore) FailOn(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.Err, method)
		return
	}
	m.Err[method] = err
}

func (m *MemoryStore) fail(method string) error {
	return m.Err[method]
}

// AddPhoto seeds an active photo for bib and returns it.
func (m *MemoryStore) AddPhoto(bib models.BibNumber, url string) models.Photo {
	m.mu.Lock()
	defer m.mu.Unlock()

	order := 1
	for _, p := range m.photos {
		if p.BibNumber == bib && p.PhotoOrder >= order {
			order = p.PhotoOrder + 1
		}
	}
	now := m.now().UTC()
	p := models.Photo{
		ID:         uuid.New(),
		BibNumber:  bib,
		PreviewURL: url,
		HighresURL: url,
		PhotoOrder: order,
		IsActive:   true,
		UploadedAt: now,
		UpdatedAt:  now,
	}
	m.photos[p.ID] = p
	return p
}

// PutPhoto stores p as is.
func (m *MemoryStore) PutPhoto(p models.Photo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.photos[p.ID] = p
}

// Access returns the access row for a photo of bib.
func (m *MemoryStore) Access(bib models.BibNumber, photoID uuid.UUID) (models.PhotoAccess, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.access[selectionKey{bib, photoID}]
	return a, ok
}

// Payments returns every stored payment.
func (m *MemoryStore) Payments() []models.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Payment, 0, len(m.payments))
	for _, p := range m.payments {
		out = append(out, p)
	}
	return out
}

func (m *MemoryStore) ListPhotosByBib(ctx context.Context, bib models.BibNumber) ([]models.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ListPhotosByBib"); err != nil {
		return nil, err
	}
	return m.photosOf(bib), nil
}

func (m *MemoryStore) photosOf(bib models.BibNumber) []models.Photo {
	var out []models.Photo
	for _, p := range m.photos {
		if p.BibNumber == bib {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PhotoOrder != out[j].PhotoOrder {
			return out[i].PhotoOrder < out[j].PhotoOrder
		}
		return out[i].UploadedAt.Before(out[j].UploadedAt)
	})
	return out
}

func (m *MemoryStore) GetPhoto(ctx context.Context, id uuid.UUID) (*models.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.photos[id]
	if !ok {
		return nil, models.ErrRecordNotFound
	}
	return &p, nil
}

func (m *MemoryStore) GetActivePhotos(ctx context.Context, bib models.BibNumber, ids []uuid.UUID) ([]models.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetActivePhotos"); err != nil {
		return nil, err
	}
	var out []models.Photo
	for _, p := range m.photosOf(bib) {
		if p.IsActive && slices.Contains(ids, p.ID) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemoryStore) CreatePhoto(ctx context.Context, photo *models.Photo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreatePhoto"); err != nil {
		return err
	}
	if photo.ID == uuid.Nil {
		photo.ID = uuid.New()
	}
	m.photos[photo.ID] = *photo
	return nil
}

func (m *MemoryStore) UpdatePhotoURLs(ctx context.Context, id uuid.UUID, previewURL, highresURL string, watermarkURL *string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpdatePhotoURLs"); err != nil {
		return time.Time{}, err
	}
	p, ok := m.photos[id]
	if !ok {
		return time.Time{}, models.ErrRecordNotFound
	}
	p.PreviewURL = previewURL
	p.HighresURL = highresURL
	p.WatermarkURL = watermarkURL
	p.UpdatedAt = m.now().UTC()
	m.photos[id] = p
	return p.UpdatedAt, nil
}

func (m *MemoryStore) DeletePhoto(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.photos[id]; !ok {
		return models.ErrRecordNotFound
	}
	delete(m.photos, id)
	for k := range m.selections {
		if k.photoID == id {
			delete(m.selections, k)
		}
	}
	for k := range m.access {
		if k.photoID == id {
			delete(m.access, k)
		}
	}
	m.orderItems = slices.DeleteFunc(m.orderItems, func(o models.OrderItem) bool { return o.PhotoID == id })
	return nil
}

func (m *MemoryStore) NextPhotoOrder(ctx context.Context, bib models.BibNumber) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := 1
	for _, p := range m.photos {
		if p.BibNumber == bib && p.PhotoOrder >= next {
			next = p.PhotoOrder + 1
		}
	}
	return next, nil
}

func (m *MemoryStore) UpsertSelection(ctx context.Context, bib models.BibNumber, photoID uuid.UUID, selected bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpsertSelection"); err != nil {
		return err
	}
	m.upsertSelection(bib, photoID, selected)
	return nil
}

func (m *MemoryStore) upsertSelection(bib models.BibNumber, photoID uuid.UUID, selected bool) {
	key := selectionKey{bib, photoID}
	sel, ok := m.selections[key]
	if !ok {
		sel = models.PhotoSelection{ID: uuid.New(), BibNumber: bib, PhotoID: photoID, CreatedAt: m.now().UTC()}
	}
	sel.IsSelected = selected
	m.selections[key] = sel
}

func (m *MemoryStore) ReplaceSelections(ctx context.Context, bib models.BibNumber, ids []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ReplaceSelections"); err != nil {
		return err
	}
	for k, sel := range m.selections {
		if k.bib == bib {
			sel.IsSelected = false
			m.selections[k] = sel
		}
	}
	for _, p := range m.photosOf(bib) {
		m.upsertSelection(bib, p.ID, slices.Contains(ids, p.ID))
	}
	return nil
}

func (m *MemoryStore) ListSelections(ctx context.Context, bib models.BibNumber) ([]models.PhotoSelection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ListSelections"); err != nil {
		return nil, err
	}
	var out []models.PhotoSelection
	for k, sel := range m.selections {
		if k.bib == bib {
			out = append(out, sel)
		}
	}
	return out, nil
}

func (m *MemoryStore) EnsureAccess(ctx context.Context, bib models.BibNumber, photoIDs []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("EnsureAccess"); err != nil {
		return err
	}
	for _, id := range photoIDs {
		m.accessRow(bib, id)
	}
	return nil
}

// accessRow returns the access row for (bib, photoID), creating it when
// missing.
func (m *MemoryStore) accessRow(bib models.BibNumber, photoID uuid.UUID) models.PhotoAccess {
	key := selectionKey{bib, photoID}
	a, ok := m.access[key]
	if !ok {
		a = models.PhotoAccess{ID: uuid.New(), PhotoID: photoID, BibNumber: bib, CreatedAt: m.now().UTC()}
		m.access[key] = a
	}
	return a
}

func (m *MemoryStore) ListAccess(ctx context.Context, bib models.BibNumber) ([]models.PhotoAccess, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ListAccess"); err != nil {
		return nil, err
	}
	var out []models.PhotoAccess
	for k, a := range m.access {
		if k.bib == bib {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *MemoryStore) MarkSurveyCompleted(ctx context.Context, bib models.BibNumber, photoIDs []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("MarkSurveyCompleted"); err != nil {
		return err
	}
	for _, id := range photoIDs {
		p, ok := m.photos[id]
		if !ok || p.BibNumber != bib {
			continue
		}
		a := m.accessRow(bib, id)
		a.SurveyCompleted = true
		m.access[selectionKey{bib, id}] = a
	}
	return nil
}

func (m *MemoryStore) ListUnlocked(ctx context.Context, bib models.BibNumber) ([]models.UnlockedPhoto, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ListUnlocked"); err != nil {
		return nil, err
	}
	var out []models.UnlockedPhoto
	for _, p := range m.photosOf(bib) {
		a, ok := m.access[selectionKey{bib, p.ID}]
		if ok && a.IsUnlocked && p.IsActive {
			out = append(out, models.UnlockedPhoto{Photo: p, Access: a})
		}
	}
	return out, nil
}

func (m *MemoryStore) RecordDownloads(ctx context.Context, accessIDs []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("RecordDownloads"); err != nil {
		return err
	}
	now := m.now().UTC()
	for k, a := range m.access {
		if slices.Contains(accessIDs, a.ID) {
			a.DownloadCount++
			a.LastDownloadedAt = &now
			m.access[k] = a
		}
	}
	return nil
}

func (m *MemoryStore) GetSurvey(ctx context.Context, bib models.BibNumber) (*models.SurveyResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetSurvey"); err != nil {
		return nil, err
	}
	s, ok := m.surveys[bib]
	if !ok {
		return nil, models.ErrRecordNotFound
	}
	return &s, nil
}

func (m *MemoryStore) CreateSurvey(ctx context.Context, survey *models.SurveyResponse) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreateSurvey"); err != nil {
		return false, err
	}
	if _, ok := m.surveys[survey.BibNumber]; ok {
		return false, nil
	}
	if survey.ID == uuid.Nil {
		survey.ID = uuid.New()
	}
	if survey.CompletedAt.IsZero() {
		survey.CompletedAt = m.now().UTC()
	}
	m.surveys[survey.BibNumber] = *survey
	return true, nil
}

func (m *MemoryStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreatePayment"); err != nil {
		return err
	}
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	if payment.Status == "" {
		payment.Status = models.PaymentPending
	}
	for _, p := range m.payments {
		if payment.StripeSessionID != "" && p.StripeSessionID == payment.StripeSessionID {
			return errDuplicateSession
		}
	}
	payment.CreatedAt = m.now().UTC()
	m.payments[payment.ID] = *payment
	return nil
}

func (m *MemoryStore) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, models.ErrRecordNotFound
	}
	return &p, nil
}

func (m *MemoryStore) GetPaymentBySession(ctx context.Context, sessionID string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.StripeSessionID == sessionID {
			return &p, nil
		}
	}
	return nil, models.ErrRecordNotFound
}

func (m *MemoryStore) findPayment(lookup models.PaymentLookup) (models.Payment, bool) {
	var (
		found models.Payment
		ok    bool
	)
	for _, p := range m.payments {
		match := (lookup.PaymentID != uuid.Nil && p.ID == lookup.PaymentID) ||
			(lookup.SessionID != "" && p.StripeSessionID == lookup.SessionID) ||
			(lookup.PaymentIntentID != "" && p.StripePaymentIntentID == lookup.PaymentIntentID)
		if match && (!ok || p.CreatedAt.Before(found.CreatedAt)) {
			found, ok = p, true
		}
	}
	return found, ok
}

func (m *MemoryStore) CompletePayment(ctx context.Context, lookup models.PaymentLookup, completion models.PaymentCompletion) (*models.Payment, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CompletePayment"); err != nil {
		return nil, false, err
	}
	p, ok := m.findPayment(lookup)
	if !ok {
		return nil, false, models.ErrRecordNotFound
	}
	if p.Status != models.PaymentPending {
		return &p, false, nil
	}
	if completion.BibNumber != "" && completion.BibNumber != p.BibNumber {
		return nil, false, models.ErrBibMismatch
	}

	ids := completion.PhotoIDs
	if len(ids) == 0 {
		ids = p.SelectedPhotoIDs
	}
	now := m.now().UTC()
	for _, id := range ids {
		photo, ok := m.photos[id]
		if !ok || photo.BibNumber != p.BibNumber {
			continue
		}
		a := m.accessRow(p.BibNumber, id)
		a.PaymentCompleted = true
		a.IsUnlocked = true
		if a.UnlockedAt == nil {
			a.UnlockedAt = &now
		}
		m.access[selectionKey{p.BibNumber, id}] = a

		if !slices.ContainsFunc(m.orderItems, func(o models.OrderItem) bool { return o.PaymentID == p.ID && o.PhotoID == id }) {
			m.orderItems = append(m.orderItems, models.OrderItem{
				ID:        uuid.New(),
				PaymentID: p.ID,
				PhotoID:   id,
				PricePaid: p.PricePerPhoto,
				CreatedAt: now,
			})
		}
	}

	p.Status = models.PaymentCompleted
	p.CompletedAt = &now
	if completion.PaymentIntentID != "" {
		p.StripePaymentIntentID = completion.PaymentIntentID
	}
	m.payments[p.ID] = p
	return &p, true, nil
}

func (m *MemoryStore) TransitionPayment(ctx context.Context, lookup models.PaymentLookup, status models.PaymentStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.findPayment(lookup)
	if !ok {
		return false, models.ErrRecordNotFound
	}
	if p.Status != models.PaymentPending {
		return false, nil
	}
	p.Status = status
	if lookup.PaymentIntentID != "" {
		p.StripePaymentIntentID = lookup.PaymentIntentID
	}
	m.payments[p.ID] = p
	return true, nil
}

func (m *MemoryStore) ListOrderItems(ctx context.Context, paymentID uuid.UUID) ([]models.OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.OrderItem
	for _, o := range m.orderItems {
		if o.PaymentID == paymentID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *MemoryStore) IncrementEmailAttempts(ctx context.Context, paymentID uuid.UUID, attempts int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("IncrementEmailAttempts"); err != nil {
		return err
	}
	p, ok := m.payments[paymentID]
	if !ok {
		return models.ErrRecordNotFound
	}
	p.EmailAttempts += attempts
	m.payments[paymentID] = p
	return nil
}

func (m *MemoryStore) ClaimEmailSend(ctx context.Context, paymentID uuid.UUID, force bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ClaimEmailSend"); err != nil {
		return false, err
	}
	p, ok := m.payments[paymentID]
	if !ok {
		return false, models.ErrRecordNotFound
	}
	if p.EmailSent && !force {
		return false, nil
	}
	p.EmailSent = true
	m.payments[paymentID] = p
	return true, nil
}

func (m *MemoryStore) ReleaseEmailClaim(ctx context.Context, paymentID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[paymentID]
	if !ok {
		return models.ErrRecordNotFound
	}
	p.EmailSent = p.EmailSentAt != nil
	m.payments[paymentID] = p
	return nil
}

func (m *MemoryStore) MarkEmailSent(ctx context.Context, paymentID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[paymentID]
	if !ok {
		return models.ErrRecordNotFound
	}
	now := m.now().UTC()
	p.EmailSent = true
	p.EmailSentAt = &now
	m.payments[paymentID] = p
	return nil
}

func (m *MemoryStore) ListBibSummaries(ctx context.Context) ([]models.BibSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byBib := make(map[models.BibNumber]*models.BibSummary)
	var order []models.BibNumber
	for _, p := range m.photos {
		s, ok := byBib[p.BibNumber]
		if !ok {
			s = &models.BibSummary{BibNumber: p.BibNumber}
			byBib[p.BibNumber] = s
			order = append(order, p.BibNumber)
		}
		s.PhotoCount++
		if s.LatestUpload == nil || p.UploadedAt.After(*s.LatestUpload) {
			t := p.UploadedAt
			s.LatestUpload = &t
		}
	}
	for bib, s := range byBib {
		_, s.HasSurvey = m.surveys[bib]
		for _, pay := range m.payments {
			if pay.BibNumber != bib {
				continue
			}
			s.HasPayment = true
			if pay.Status == models.PaymentCompleted {
				s.IsPaid = true
				s.PaymentAmount += pay.TotalAmount
			}
		}
	}
	out := make([]models.BibSummary, 0, len(order))
	for _, bib := range order {
		out = append(out, *byBib[bib])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LatestUpload.After(*out[j].LatestUpload) })
	return out, nil
}

func (m *MemoryStore) DeleteBib(ctx context.Context, bib models.BibNumber) ([]models.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	photos := m.photosOf(bib)
	for _, p := range photos {
		delete(m.photos, p.ID)
		m.orderItems = slices.DeleteFunc(m.orderItems, func(o models.OrderItem) bool { return o.PhotoID == p.ID })
	}
	for k := range m.selections {
		if k.bib == bib {
			delete(m.selections, k)
		}
	}
	for k := range m.access {
		if k.bib == bib {
			delete(m.access, k)
		}
	}
	for id, p := range m.payments {
		if p.BibNumber == bib {
			delete(m.payments, id)
		}
	}
	delete(m.surveys, bib)
	return photos, nil
}
