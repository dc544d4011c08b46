package dispatch

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/brandwell/dispatch/internal/audit"
	"github.com/brandwell/dispatch/internal/outbox"
	"github.com/brandwell/dispatch/internal/providers"
	"github.com/brandwell/dispatch/internal/resolver"
)

// ProviderResolver is the slice of the resolver the dispatcher needs.
type ProviderResolver interface {
	ResolveScheduler(ctx context.Context, ownerID, brandID string) (*resolver.SchedulerHandle, error)
	ResolveSms(ctx context.Context, ownerID, brandID string) (providers.SmsProvider, error)
	ResolveGbp(ctx context.Context, ownerID, brandID string) (providers.GbpProvider, error)
	ResolveEmail(ctx context.Context, ownerID, brandID string) (providers.EmailProvider, error)
}

// PostEntry is the domain record of a published post.
type PostEntry struct {
	OwnerID   string
	BrandID   string
	Provider  string
	Platform  string
	MediaType string
	Status    string
}

// DomainRecorder owns the domain side effects of a successful dispatch.
// These writes are part of the success contract: a failure here fails the
// attempt and the record is retried as a whole.
type DomainRecorder interface {
	RecordPost(ctx context.Context, entry PostEntry) error
	MarkSchedulePosted(ctx context.Context, scheduleID string) error
	MarkEmailLogSent(ctx context.Context, emailLogID, providerMessageID string) error
}

// ContentRenderer is the upstream content-generation collaborator. Only the
// digest template is recognized here.
type ContentRenderer interface {
	RenderDigest(ctx context.Context, ownerID, brandID string) (subject, html string, err error)
}

// Dispatcher maps a record's declared type to payload validation, the
// correct adapter call, and the correct side-effect recording. It is a pure
// function of the record plus tenant state.
type Dispatcher struct {
	resolver ProviderResolver
	recorder DomainRecorder
	renderer ContentRenderer
	audit    audit.Trail
	logger   zerolog.Logger
}

func New(res ProviderResolver, recorder DomainRecorder, renderer ContentRenderer, trail audit.Trail, logger zerolog.Logger) *Dispatcher {
	if trail == nil {
		trail = audit.NopTrail{}
	}
	return &Dispatcher{
		resolver: res,
		recorder: recorder,
		renderer: renderer,
		audit:    trail,
		logger:   logger,
	}
}

// Dispatch executes one attempt for one record. A nil return means the
// provider confirmed the call; any error is counted against the record's
// retry budget by the processor.
func (d *Dispatcher) Dispatch(ctx context.Context, rec *outbox.Record) error {
	var (
		result *providers.Result
		err    error
	)

	switch rec.Type {
	case outbox.ActionPostPublish:
		result, err = d.dispatchPostPublish(ctx, rec)
	case outbox.ActionSmsSend:
		result, err = d.dispatchSms(ctx, rec)
	case outbox.ActionGbpPost:
		result, err = d.dispatchGbpPost(ctx, rec)
	case outbox.ActionEmailSend:
		result, err = d.dispatchEmail(ctx, rec)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedType, rec.Type)
	}

	d.recordAudit(ctx, rec, result, err)
	return err
}

func (d *Dispatcher) dispatchPostPublish(ctx context.Context, rec *outbox.Record) (*providers.Result, error) {
	var payload postPublishPayload
	if err := decodePayload(rec.Payload, &payload); err != nil {
		return nil, err
	}
	if payload.Caption == "" {
		return nil, &ValidationError{Field: "caption"}
	}

	handle, err := d.resolver.ResolveScheduler(ctx, rec.OwnerID, rec.BrandID)
	if err != nil {
		return nil, err
	}

	profileID, err := handle.ChannelFor(payload.Platform)
	if err != nil {
		return nil, err
	}

	result, err := handle.Provider.PublishPost(ctx, providers.PublishPostInput{
		Platform:  payload.Platform,
		Caption:   payload.Caption,
		MediaURL:  payload.MediaURL,
		LinkURL:   payload.LinkURL,
		Title:     payload.Title,
		ProfileID: profileID,
	})
	if err != nil {
		return nil, err
	}

	entry := PostEntry{
		OwnerID:   rec.OwnerID,
		BrandID:   rec.BrandID,
		Provider:  string(resolver.ProviderBuffer),
		Platform:  payload.Platform,
		MediaType: inferMediaType(payload.MediaType, payload.MediaURL),
		Status:    "posted",
	}
	if err := d.recorder.RecordPost(ctx, entry); err != nil {
		return result, fmt.Errorf("record post entry: %w", err)
	}

	if payload.ScheduleID != "" {
		if err := d.recorder.MarkSchedulePosted(ctx, payload.ScheduleID); err != nil {
			return result, fmt.Errorf("mark schedule posted: %w", err)
		}
	}

	return result, nil
}

func (d *Dispatcher) dispatchSms(ctx context.Context, rec *outbox.Record) (*providers.Result, error) {
	var payload smsPayload
	if err := decodePayload(rec.Payload, &payload); err != nil {
		return nil, err
	}
	if payload.To == "" {
		return nil, &ValidationError{Field: "to"}
	}
	if payload.Message == "" {
		return nil, &ValidationError{Field: "message"}
	}

	sms, err := d.resolver.ResolveSms(ctx, rec.OwnerID, rec.BrandID)
	if err != nil {
		return nil, err
	}

	return sms.SendSms(ctx, payload.To, payload.Message)
}

func (d *Dispatcher) dispatchGbpPost(ctx context.Context, rec *outbox.Record) (*providers.Result, error) {
	var payload gbpPayload
	if err := decodePayload(rec.Payload, &payload); err != nil {
		return nil, err
	}
	if payload.Summary == "" {
		return nil, &ValidationError{Field: "summary"}
	}

	gbp, err := d.resolver.ResolveGbp(ctx, rec.OwnerID, rec.BrandID)
	if err != nil {
		return nil, err
	}

	result, err := gbp.CreatePost(ctx, providers.CreatePostInput{
		LocationName:    payload.LocationName,
		Summary:         payload.Summary,
		CallToAction:    payload.CallToAction,
		CallToActionURL: payload.ctaLink(),
		MediaURL:        payload.MediaURL,
	})
	if err != nil {
		return nil, err
	}

	entry := PostEntry{
		OwnerID:   rec.OwnerID,
		BrandID:   rec.BrandID,
		Provider:  string(resolver.ProviderGoogleBusiness),
		Platform:  "google_business",
		MediaType: inferMediaType("", payload.MediaURL),
		Status:    "posted",
	}
	if err := d.recorder.RecordPost(ctx, entry); err != nil {
		return result, fmt.Errorf("record post entry: %w", err)
	}

	return result, nil
}

func (d *Dispatcher) dispatchEmail(ctx context.Context, rec *outbox.Record) (*providers.Result, error) {
	var payload emailPayload
	if err := decodePayload(rec.Payload, &payload); err != nil {
		return nil, err
	}

	to := payload.recipient()
	if to == "" {
		return nil, &ValidationError{Field: "toEmail"}
	}

	subject, html := payload.Subject, payload.HTML
	if payload.Template == "digest" {
		renderedSubject, renderedHTML, err := d.renderer.RenderDigest(ctx, rec.OwnerID, rec.BrandID)
		if err != nil {
			return nil, fmt.Errorf("render digest: %w", err)
		}
		if renderedSubject != "" {
			subject = renderedSubject
		}
		if renderedHTML != "" {
			html = renderedHTML
		}
	}

	if subject == "" {
		return nil, &ValidationError{Field: "subject"}
	}
	if html == "" {
		return nil, &ValidationError{Field: "html"}
	}

	email, err := d.resolver.ResolveEmail(ctx, rec.OwnerID, rec.BrandID)
	if err != nil {
		return nil, err
	}

	result, err := email.SendEmail(ctx, to, subject, html, payload.Text)
	if err != nil {
		return nil, err
	}

	if payload.EmailLogID != "" {
		if err := d.recorder.MarkEmailLogSent(ctx, payload.EmailLogID, result.ProviderMessageID); err != nil {
			return result, fmt.Errorf("mark email log sent: %w", err)
		}
	}

	return result, nil
}

// recordAudit appends a history entry for every dispatch attempt. Best-effort
// logging: failures here never change the dispatch outcome.
func (d *Dispatcher) recordAudit(ctx context.Context, rec *outbox.Record, result *providers.Result, dispatchErr error) {
	entry := audit.Entry{
		OwnerID:  rec.OwnerID,
		BrandID:  rec.BrandID,
		RecordID: rec.ID,
		Action:   string(rec.Type),
		Payload:  rec.Payload,
	}
	if result != nil {
		entry.Result = result
	}
	if dispatchErr != nil {
		entry.Error = dispatchErr.Error()
	}

	if err := d.audit.Record(ctx, entry); err != nil {
		d.logger.Warn().
			Err(err).
			Str("record_id", rec.ID.String()).
			Msg("failed to append audit entry")
	}
}

func inferMediaType(declared, mediaURL string) string {
	if declared != "" {
		return declared
	}
	if mediaURL != "" {
		return "image"
	}
	return "text"
}
