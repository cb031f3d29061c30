package delivery

import (
	"context"
	"log/slog"
	"time"

	"leadcast/internal/config"
	"leadcast/internal/journal"
	"leadcast/internal/logging"
	"leadcast/internal/notifications"
	"leadcast/internal/services"
)

// Journal records channel steps.
type Journal interface {
	Append(ctx context.Context, entry journal.Entry) error
}

// Options configures an Orchestrator.
type Options struct {
	Channels        []Channel
	Router          *Router
	Notifier        notifications.Service
	Journal         Journal
	Logger          *slog.Logger
	Caption         CaptionOptions
	FilePrefix      string
	IdentifierField string
	ShareTitle      string
	Now             func() time.Time
}

// Orchestrator delivers attempts through an ordered channel chain.
type Orchestrator struct {
	channels        []Channel
	router          *Router
	notifier        notifications.Service
	journal         Journal
	logger          *slog.Logger
	caption         CaptionOptions
	filePrefix      string
	identifierField string
	shareTitle      string
	now             func() time.Time
}

// New builds an orchestrator from explicit options.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		channels:        append([]Channel(nil), opts.Channels...),
		router:          opts.Router,
		notifier:        opts.Notifier,
		journal:         opts.Journal,
		logger:          opts.Logger,
		caption:         opts.Caption,
		filePrefix:      opts.FilePrefix,
		identifierField: opts.IdentifierField,
		shareTitle:      opts.ShareTitle,
		now:             opts.Now,
	}
	if o.router == nil {
		o.router = NewRouter(nil, "")
	}
	if o.logger == nil {
		o.logger = logging.NewNop()
	}
	o.logger = logging.NewComponentLogger(o.logger, "delivery")
	if o.now == nil {
		o.now = time.Now
	}
	if o.identifierField == "" {
		o.identifierField = FieldChildName
	}
	return o
}

// NewFromConfig wires the chain for the configured delivery mode. Bot mode
// runs telegram-video then telegram-document; share mode runs only the share
// facility. Both end in local-save when delivery.local_fallback is on.
func NewFromConfig(cfg *config.Config, client TelegramSender, notifier notifications.Service, store Journal, logger *slog.Logger, opts ...LocalSaveOption) *Orchestrator {
	var channels []Channel
	switch cfg.Delivery.Mode {
	case config.DeliveryModeShare:
		var facility ShareFacility
		if share := NewCommandShare(cfg.Share); share != nil {
			facility = share
		}
		channels = append(channels, NewShareChannel(facility, cfg.Paths.StagingDir, true))
	default:
		maxBytes := int64(cfg.Delivery.MaxUploadMB) << 20
		channels = append(channels,
			NewTelegramVideoChannel(client, maxBytes),
			NewTelegramDocumentChannel(client, maxBytes),
		)
	}
	if cfg.Delivery.LocalFallback {
		channels = append(channels, NewLocalSaveChannel(cfg.Paths.SaveDir, cfg.Delivery.ManualShareURL, logger, opts...))
	}

	return New(Options{
		Channels: channels,
		Router:   RouterFromConfig(cfg),
		Notifier: notifier,
		Journal:  store,
		Logger:   logger,
		Caption: CaptionOptions{
			Header: cfg.Delivery.Header,
			Footer: cfg.Delivery.Footer,
			Limit:  cfg.Delivery.CaptionLimit,
		},
		FilePrefix:      cfg.Delivery.FilePrefix,
		IdentifierField: cfg.Delivery.IdentifierField,
		ShareTitle:      cfg.Share.Title,
	})
}

// Router returns the outcome router.
func (o *Orchestrator) Router() *Router { return o.router }

// Deliver runs the channel chain for attempt. A concurrent call on the same
// attempt returns ErrInFlight without side effects. Manual results return a
// nil error; Result.Err still carries the last channel failure.
func (o *Orchestrator) Deliver(ctx context.Context, attempt *Attempt) (Result, error) {
	if attempt == nil {
		return Result{}, services.Wrap(services.ErrValidation, "delivery", "deliver", "attempt is nil", nil)
	}
	if !attempt.acquire() {
		return Result{AttemptID: attempt.ID}, ErrInFlight
	}
	defer attempt.release()

	ctx = services.WithAttemptID(ctx, attempt.ID)
	ctx = services.WithOutcome(ctx, attempt.Outcome)
	logger := logging.WithContext(ctx, o.logger)

	dest, err := o.router.Resolve(attempt.Outcome)
	if err != nil {
		if !o.router.Empty() {
			return Result{AttemptID: attempt.ID, Status: StatusFailed, Err: err}, err
		}
		dest = Destination{Outcome: attempt.Outcome}
	}

	payload := o.buildPayload(attempt, dest, logger)
	logger.Info("delivery started",
		logging.String(logging.FieldEventType, "delivery_started"),
		logging.Any("destination", dest),
		logging.Size(payload.Size()),
		logging.String("content_type", payload.ContentType),
		logging.String("file", payload.FileName),
	)

	result := Result{AttemptID: attempt.ID, Destination: dest}
	var previous *StepResult
	for _, channel := range o.channels {
		if !channel.Accepts(payload, previous) {
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			result.Err = ctxErr
			break
		}
		step := o.runStep(ctx, channel, payload)
		result.Steps = append(result.Steps, step)
		o.journalStep(ctx, logger, attempt, dest, payload, step)
		if step.Err == nil {
			result.Status = step.Receipt.Status
			result.Channel = step.Channel
			result.Path = step.Receipt.Path
			if result.Status == StatusSent {
				result.Err = nil
			}
			break
		}
		result.Err = step.Err
		failed := step
		previous = &failed
	}

	if result.Status == "" {
		result.Status = StatusFailed
		if result.Err == nil {
			result.Err = ErrNoChannels
		}
	}
	o.notify(ctx, logger, attempt, payload, result)

	switch result.Status {
	case StatusSent:
		logger.Info("lead delivered",
			logging.String(logging.FieldEventType, "delivery_sent"),
			logging.String(logging.FieldChannel, result.Channel),
		)
		return result, nil
	case StatusManual:
		logging.WarnWithContext(logger, "lead saved for manual sharing", "delivery_manual",
			logging.String("path", result.Path),
			logging.Error(result.Err),
			logging.String(logging.FieldErrorHint, "attach the saved file in the opened share link"),
			logging.String(logging.FieldImpact, "lead not delivered automatically"),
		)
		return result, nil
	default:
		logging.ErrorWithContext(logger, "lead delivery failed", "delivery_failed",
			logging.Error(result.Err),
			logging.String(logging.FieldErrorHint, hintFor(KindOf(result.Err))),
		)
		return result, result.Err
	}
}

func (o *Orchestrator) buildPayload(attempt *Attempt, dest Destination, logger *slog.Logger) *Payload {
	data := attempt.Artifact.Bytes()
	normalized := NormalizeFormat(attempt.Artifact.Format(), data)
	if normalized.Sniffed {
		logger.Debug("container detected from content",
			logging.String("declared", string(attempt.Artifact.Format())),
			logging.String("content_type", normalized.ContentType),
		)
	}

	snap := attempt.Location.Snapshot()
	if !snap.Determined() {
		reason := string(snap.Reason)
		if reason == "" {
			reason = "pending"
		}
		logger.Info("location not determined",
			logging.String(logging.FieldEventType, "location_unresolved"),
			logging.String("reason", reason),
		)
	}

	identifier := o.identifier(attempt.Record)
	return &Payload{
		AttemptID:   attempt.ID,
		Identifier:  identifier,
		Destination: dest,
		Data:        data,
		FileName:    FileName(o.filePrefix, identifier, normalized.Extension, o.now()),
		ContentType: normalized.ContentType,
		Extension:   normalized.Extension,
		Caption:     BuildCaption(attempt.Record, snap, o.caption),
		Text:        BuildShareText(attempt.Record, snap, o.caption),
		Title:       o.shareTitle,
	}
}

func (o *Orchestrator) identifier(record Record) string {
	if value, ok := record.Value(o.identifierField); ok && value != "" {
		return value
	}
	if len(record) > 0 {
		return record[0].Value
	}
	return ""
}

func (o *Orchestrator) runStep(ctx context.Context, channel Channel, payload *Payload) StepResult {
	name := channel.Name()
	stepCtx := services.WithChannel(ctx, name)
	logger := logging.WithContext(stepCtx, o.logger)
	logger.Debug("channel started", logging.String(logging.FieldEventType, "channel_started"))

	start := o.now()
	receipt, err := channel.Send(stepCtx, payload)
	step := StepResult{Channel: name, Duration: o.now().Sub(start)}
	if err != nil {
		channelErr := channelError(name, err)
		step.Status = StatusFailed
		step.Kind = channelErr.Kind
		step.Err = channelErr
		logging.WarnWithContext(logger, "channel failed", "channel_failed",
			logging.String("kind", string(step.Kind)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, hintFor(step.Kind)),
			logging.String(logging.FieldImpact, "trying the next delivery channel"),
		)
		return step
	}
	if receipt.Status == "" {
		receipt.Status = StatusSent
	}
	step.Status = receipt.Status
	step.Receipt = receipt
	logger.Info("channel finished",
		logging.String(logging.FieldEventType, "channel_finished"),
		logging.String("status", string(step.Status)),
		logging.Duration("duration", step.Duration),
	)
	return step
}

func (o *Orchestrator) journalStep(ctx context.Context, logger *slog.Logger, attempt *Attempt, dest Destination, payload *Payload, step StepResult) {
	if o.journal == nil {
		return
	}
	entry := journal.Entry{
		AttemptID:     attempt.ID,
		Outcome:       attempt.Outcome,
		Destination:   dest.Name,
		Channel:       step.Channel,
		Status:        string(step.Status),
		Kind:          string(step.Kind),
		ArtifactBytes: payload.Size(),
		FormatLabel:   payload.ContentType,
		Duration:      step.Duration,
		CreatedAt:     o.now(),
	}
	if step.Err != nil {
		entry.Error = step.Err.Error()
	}
	if err := o.journal.Append(context.WithoutCancel(ctx), entry); err != nil {
		logging.WarnWithContext(logger, "journal write failed", "journal_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "delivery history incomplete"),
		)
	}
}

func (o *Orchestrator) notify(ctx context.Context, logger *slog.Logger, attempt *Attempt, payload *Payload, result Result) {
	if o.notifier == nil {
		return
	}
	var event notifications.Event
	data := notifications.Payload{
		"identifier":  payload.Identifier,
		"outcome":     attempt.Outcome,
		"destination": result.Destination.Name,
		"channel":     result.Channel,
	}
	switch result.Status {
	case StatusSent:
		event = notifications.EventLeadSent
	case StatusManual:
		event = notifications.EventLeadManual
		data["path"] = result.Path
		if result.Err != nil {
			data["error"] = result.Err.Error()
		}
	default:
		event = notifications.EventLeadFailed
		if result.Err != nil {
			data["error"] = result.Err.Error()
		}
	}
	if err := o.notifier.Publish(context.WithoutCancel(ctx), event, data); err != nil {
		logging.WarnWithContext(logger, "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "remote operator not alerted"),
		)
	}
}

// Delivered reports whether the lead reached a destination without a manual
// step, which makes the session eligible for reset.
func (r Result) Delivered() bool {
	return r.Status == StatusSent
}

func hintFor(kind Kind) string {
	switch kind {
	case KindPayloadTooLarge:
		return "record a shorter clip or raise delivery.max_upload_mb"
	case KindDestinationRejected:
		return "check the route bot_token and that the bot is a member of the chat"
	case KindDestinationNotFound:
		return "check the route chat_id"
	case KindNetworkTimeout:
		return "check network connectivity or raise delivery.request_timeout_seconds"
	case KindFormatRejected:
		return "try a different capture format"
	case KindPlatformShareUnsupported:
		return "install the share.command program or switch delivery.mode to bot"
	default:
		return "check logs for details"
	}
}
