package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandwell/dispatch/internal/audit"
	"github.com/brandwell/dispatch/internal/outbox"
	"github.com/brandwell/dispatch/internal/providers"
	"github.com/brandwell/dispatch/internal/resolver"
)

// Fakes for the dispatcher's collaborators.

type fakeScheduler struct {
	published []providers.PublishPostInput
	err       error
}

func (f *fakeScheduler) PublishPost(ctx context.Context, in providers.PublishPostInput) (*providers.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.published = append(f.published, in)
	return &providers.Result{ProviderMessageID: "buf-1", Status: "sent"}, nil
}

type fakeSms struct {
	to, message string
	err         error
}

func (f *fakeSms) SendSms(ctx context.Context, to, message string) (*providers.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.to, f.message = to, message
	return &providers.Result{ProviderMessageID: "SM1", Status: "sent"}, nil
}

type fakeGbp struct {
	posts []providers.CreatePostInput
}

func (f *fakeGbp) CreatePost(ctx context.Context, in providers.CreatePostInput) (*providers.Result, error) {
	f.posts = append(f.posts, in)
	return &providers.Result{ProviderPostID: "gbp-1", Status: "sent"}, nil
}

type fakeEmail struct {
	to, subject, html string
}

func (f *fakeEmail) SendEmail(ctx context.Context, to, subject, html, text string) (*providers.Result, error) {
	f.to, f.subject, f.html = to, subject, html
	return &providers.Result{ProviderMessageID: "msg-9", Status: "sent"}, nil
}

type fakeResolver struct {
	scheduler    *fakeScheduler
	channels     map[string]string
	schedulerErr error
	sms          *fakeSms
	smsErr       error
	gbp          *fakeGbp
	gbpErr       error
	email        *fakeEmail
	emailErr     error
}

func (f *fakeResolver) ResolveScheduler(ctx context.Context, ownerID, brandID string) (*resolver.SchedulerHandle, error) {
	if f.schedulerErr != nil {
		return nil, f.schedulerErr
	}
	return resolver.NewSchedulerHandle(f.scheduler, f.channels), nil
}

func (f *fakeResolver) ResolveSms(ctx context.Context, ownerID, brandID string) (providers.SmsProvider, error) {
	if f.smsErr != nil {
		return nil, f.smsErr
	}
	return f.sms, nil
}

func (f *fakeResolver) ResolveGbp(ctx context.Context, ownerID, brandID string) (providers.GbpProvider, error) {
	if f.gbpErr != nil {
		return nil, f.gbpErr
	}
	return f.gbp, nil
}

func (f *fakeResolver) ResolveEmail(ctx context.Context, ownerID, brandID string) (providers.EmailProvider, error) {
	if f.emailErr != nil {
		return nil, f.emailErr
	}
	return f.email, nil
}

type fakeRecorder struct {
	posts         []PostEntry
	schedulesDone []string
	emailLogs     map[string]string
	recordPostErr error
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{emailLogs: map[string]string{}}
}

func (f *fakeRecorder) RecordPost(ctx context.Context, entry PostEntry) error {
	if f.recordPostErr != nil {
		return f.recordPostErr
	}
	f.posts = append(f.posts, entry)
	return nil
}

func (f *fakeRecorder) MarkSchedulePosted(ctx context.Context, scheduleID string) error {
	f.schedulesDone = append(f.schedulesDone, scheduleID)
	return nil
}

func (f *fakeRecorder) MarkEmailLogSent(ctx context.Context, emailLogID, providerMessageID string) error {
	f.emailLogs[emailLogID] = providerMessageID
	return nil
}

type fakeRenderer struct {
	subject, html string
	err           error
}

func (f *fakeRenderer) RenderDigest(ctx context.Context, ownerID, brandID string) (string, string, error) {
	return f.subject, f.html, f.err
}

type memoryTrail struct {
	entries []audit.Entry
}

func (m *memoryTrail) Record(ctx context.Context, entry audit.Entry) error {
	m.entries = append(m.entries, entry)
	return nil
}

func record(typ outbox.ActionType, payload map[string]any) *outbox.Record {
	return &outbox.Record{
		ID:      uuid.New(),
		OwnerID: "owner-1",
		BrandID: "brand-1",
		Type:    typ,
		Payload: payload,
		Status:  outbox.StatusQueued,
	}
}

func TestDispatch_PostPublish(t *testing.T) {
	t.Parallel()

	res := &fakeResolver{
		scheduler: &fakeScheduler{},
		channels:  map[string]string{"instagram": "profile-ig"},
	}
	recorder := newFakeRecorder()
	trail := &memoryTrail{}
	d := New(res, recorder, &fakeRenderer{}, trail, zerolog.Nop())

	err := d.Dispatch(context.Background(), record(outbox.ActionPostPublish, map[string]any{
		"platform":   "instagram",
		"caption":    "new drop",
		"mediaUrl":   "https://cdn.example.com/a.jpg",
		"scheduleId": "sched-1",
	}))
	require.NoError(t, err)

	require.Len(t, res.scheduler.published, 1)
	assert.Equal(t, "profile-ig", res.scheduler.published[0].ProfileID)
	assert.Equal(t, "new drop", res.scheduler.published[0].Caption)

	require.Len(t, recorder.posts, 1)
	assert.Equal(t, "buffer", recorder.posts[0].Provider)
	assert.Equal(t, "image", recorder.posts[0].MediaType)
	assert.Equal(t, "posted", recorder.posts[0].Status)
	assert.Equal(t, []string{"sched-1"}, recorder.schedulesDone)

	require.Len(t, trail.entries, 1)
	assert.Equal(t, "post_publish", trail.entries[0].Action)
	assert.Empty(t, trail.entries[0].Error)
}

func TestDispatch_PostPublish_MissingCaption(t *testing.T) {
	t.Parallel()

	d := New(&fakeResolver{scheduler: &fakeScheduler{}}, newFakeRecorder(), &fakeRenderer{}, nil, zerolog.Nop())

	err := d.Dispatch(context.Background(), record(outbox.ActionPostPublish, map[string]any{
		"platform": "instagram",
	}))

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "caption", vErr.Field)
}

func TestDispatch_PostPublish_NoChannelForPlatform(t *testing.T) {
	t.Parallel()

	res := &fakeResolver{
		scheduler: &fakeScheduler{},
		channels:  map[string]string{"instagram": "profile-ig"},
	}
	d := New(res, newFakeRecorder(), &fakeRenderer{}, nil, zerolog.Nop())

	err := d.Dispatch(context.Background(), record(outbox.ActionPostPublish, map[string]any{
		"platform": "tiktok",
		"caption":  "dance",
	}))

	var cfgErr *resolver.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, cfgErr.Reason, "tiktok")
	assert.Empty(t, res.scheduler.published)
}

func TestDispatch_Sms(t *testing.T) {
	t.Parallel()

	res := &fakeResolver{sms: &fakeSms{}}
	d := New(res, newFakeRecorder(), &fakeRenderer{}, nil, zerolog.Nop())

	err := d.Dispatch(context.Background(), record(outbox.ActionSmsSend, map[string]any{
		"to":      "+15550100",
		"message": "your table is ready",
	}))
	require.NoError(t, err)
	assert.Equal(t, "+15550100", res.sms.to)
	assert.Equal(t, "your table is ready", res.sms.message)
}

func TestDispatch_Sms_MissingFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload map[string]any
		field   string
	}{
		{name: "empty message", payload: map[string]any{"to": "+15550100"}, field: "message"},
		{name: "empty to", payload: map[string]any{"message": "hi"}, field: "to"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := New(&fakeResolver{sms: &fakeSms{}}, newFakeRecorder(), &fakeRenderer{}, nil, zerolog.Nop())
			err := d.Dispatch(context.Background(), record(outbox.ActionSmsSend, tt.payload))

			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestDispatch_GbpPost_LegacyCtaFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload map[string]any
		wantURL string
	}{
		{
			name:    "callToActionUrl preferred",
			payload: map[string]any{"summary": "s", "callToActionUrl": "https://a", "ctaUrl": "https://b", "linkUrl": "https://c"},
			wantURL: "https://a",
		},
		{
			name:    "ctaUrl next",
			payload: map[string]any{"summary": "s", "ctaUrl": "https://b", "linkUrl": "https://c"},
			wantURL: "https://b",
		},
		{
			name:    "linkUrl last",
			payload: map[string]any{"summary": "s", "linkUrl": "https://c"},
			wantURL: "https://c",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res := &fakeResolver{gbp: &fakeGbp{}}
			recorder := newFakeRecorder()
			d := New(res, recorder, &fakeRenderer{}, nil, zerolog.Nop())

			err := d.Dispatch(context.Background(), record(outbox.ActionGbpPost, tt.payload))
			require.NoError(t, err)
			require.Len(t, res.gbp.posts, 1)
			assert.Equal(t, tt.wantURL, res.gbp.posts[0].CallToActionURL)

			require.Len(t, recorder.posts, 1)
			assert.Equal(t, "google_business", recorder.posts[0].Provider)
		})
	}
}

func TestDispatch_GbpPost_MissingSummary(t *testing.T) {
	t.Parallel()

	d := New(&fakeResolver{gbp: &fakeGbp{}}, newFakeRecorder(), &fakeRenderer{}, nil, zerolog.Nop())
	err := d.Dispatch(context.Background(), record(outbox.ActionGbpPost, map[string]any{}))

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "summary", vErr.Field)
}

func TestDispatch_Email_DigestTemplate(t *testing.T) {
	t.Parallel()

	res := &fakeResolver{email: &fakeEmail{}}
	recorder := newFakeRecorder()
	renderer := &fakeRenderer{subject: "Your weekly digest", html: "<p>3 new reviews</p>"}
	d := New(res, recorder, renderer, nil, zerolog.Nop())

	err := d.Dispatch(context.Background(), record(outbox.ActionEmailSend, map[string]any{
		"toEmail":    "owner@biz.example",
		"template":   "digest",
		"emailLogId": "log-1",
	}))
	require.NoError(t, err)

	assert.Equal(t, "owner@biz.example", res.email.to)
	assert.Equal(t, "Your weekly digest", res.email.subject)

	// The linked email-log entry gets the provider message id.
	assert.Equal(t, "msg-9", recorder.emailLogs["log-1"])
}

func TestDispatch_Email_EmptyAfterRender(t *testing.T) {
	t.Parallel()

	renderer := &fakeRenderer{subject: "", html: ""}
	d := New(&fakeResolver{email: &fakeEmail{}}, newFakeRecorder(), renderer, nil, zerolog.Nop())

	err := d.Dispatch(context.Background(), record(outbox.ActionEmailSend, map[string]any{
		"toEmail":  "owner@biz.example",
		"template": "digest",
	}))

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "subject", vErr.Field)
}

func TestDispatch_Email_RecipientFallback(t *testing.T) {
	t.Parallel()

	res := &fakeResolver{email: &fakeEmail{}}
	d := New(res, newFakeRecorder(), &fakeRenderer{}, nil, zerolog.Nop())

	err := d.Dispatch(context.Background(), record(outbox.ActionEmailSend, map[string]any{
		"to":      "fallback@biz.example",
		"subject": "hello",
		"html":    "<p>hi</p>",
	}))
	require.NoError(t, err)
	assert.Equal(t, "fallback@biz.example", res.email.to)
}

func TestDispatch_Email_NoRecipient(t *testing.T) {
	t.Parallel()

	d := New(&fakeResolver{email: &fakeEmail{}}, newFakeRecorder(), &fakeRenderer{}, nil, zerolog.Nop())
	err := d.Dispatch(context.Background(), record(outbox.ActionEmailSend, map[string]any{
		"subject": "hello",
		"html":    "<p>hi</p>",
	}))

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "toEmail", vErr.Field)
}

func TestDispatch_UnsupportedType(t *testing.T) {
	t.Parallel()

	trail := &memoryTrail{}
	d := New(&fakeResolver{}, newFakeRecorder(), &fakeRenderer{}, trail, zerolog.Nop())

	err := d.Dispatch(context.Background(), record("carrier_pigeon", map[string]any{}))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	// Failures are audited too.
	require.Len(t, trail.entries, 1)
	assert.Contains(t, trail.entries[0].Error, "carrier_pigeon")
}

func TestDispatch_ResolverErrorPropagates(t *testing.T) {
	t.Parallel()

	d := New(&fakeResolver{smsErr: resolver.ErrNotConnected}, newFakeRecorder(), &fakeRenderer{}, nil, zerolog.Nop())
	err := d.Dispatch(context.Background(), record(outbox.ActionSmsSend, map[string]any{
		"to": "+15550100", "message": "hi",
	}))
	assert.ErrorIs(t, err, resolver.ErrNotConnected)
}
