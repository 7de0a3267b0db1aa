// Package studio runs the persona studio: put a chosen persona together with a
// product image and have the editor render the persona showcasing it.
package studio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"personastudio/internal/apiclient"
	"personastudio/internal/domain"
	"personastudio/internal/generations"
	"personastudio/internal/infra"
)

// ErrRunDiscarded is returned by a run whose results were dropped because the
// sequence was reset while it was in flight.
var ErrRunDiscarded = errors.New("studio: run discarded by reset")

// RemoteAPI is the image service used by the two remote steps.
type RemoteAPI interface {
	MergeImages(ctx context.Context, req apiclient.MergeRequest) (*apiclient.MergeResponse, error)
	EditImage(ctx context.Context, req apiclient.EditRequest) (*apiclient.EditResponse, error)
}

// GenerationStore persists a finished image to the user's gallery.
type GenerationStore interface {
	Store(ctx context.Context, req generations.StoreRequest) (*domain.SavedGeneration, error)
}

// Options fixes the parameters sent to the remote steps.
type Options struct {
	MergeWidth       int
	MergeHeight      int
	LLMModel         string
	AspectRatio      string
	OutputFormat     string
	StoredImageModel string
	StoredLLMModel   string
	Logger           *infra.Logger
}

func (o Options) withDefaults() Options {
	if o.MergeWidth <= 0 {
		o.MergeWidth = 512
	}
	if o.MergeHeight <= 0 {
		o.MergeHeight = 512
	}
	if o.LLMModel == "" {
		o.LLMModel = "claude"
	}
	if o.AspectRatio == "" {
		o.AspectRatio = "1:1"
	}
	if o.OutputFormat == "" {
		o.OutputFormat = "jpeg"
	}
	if o.StoredImageModel == "" {
		o.StoredImageModel = domain.ImageModelKontext
	}
	if o.StoredLLMModel == "" {
		o.StoredLLMModel = "none"
	}
	return o
}

// Sequence holds one user's studio state and drives runs through
// merge, edit and best-effort save. It is safe for concurrent use; at most one
// run is active at a time.
type Sequence struct {
	api    RemoteAPI
	store  GenerationStore
	opts   Options
	logger *infra.Logger

	mu        sync.Mutex
	persona   *domain.PersonaSelection
	product   *domain.ProductAsset
	prompt    string
	status    domain.RunStatus
	merged    string
	final     string
	errMsg    string
	saved     *domain.SavedGeneration
	inFlight  bool
	run       int
	updated   time.Time
	observers []Observer
}

// New builds a sequence around its collaborators. store may be nil, in which
// case completed runs are not saved.
func New(api RemoteAPI, store GenerationStore, opts Options) *Sequence {
	opts = opts.withDefaults()
	return &Sequence{
		api:     api,
		store:   store,
		opts:    opts,
		logger:  infra.LoggerOrDiscard(opts.Logger),
		status:  domain.RunIdle,
		updated: time.Now(),
	}
}

// Observe registers o for all subsequent events.
func (s *Sequence) Observe(o Observer) {
	if o == nil {
		return
	}
	s.mu.Lock()
	s.observers = append(s.observers, o)
	s.mu.Unlock()
}

// SelectPersona replaces the persona. Rejected while a remote step is running.
func (s *Sequence) SelectPersona(p domain.PersonaSelection) error {
	if strings.TrimSpace(p.ImageURL) == "" {
		return domain.Invalid("persona", "persona image is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lockedLocked() {
		return domain.ErrSelectionLocked
	}
	s.persona = &p
	s.touchLocked()
	return nil
}

// SetProduct replaces the product image. Rejected while a remote step is running.
func (s *Sequence) SetProduct(asset domain.ProductAsset) error {
	if len(asset.Data) == 0 {
		return domain.Invalid("product", "product image is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lockedLocked() {
		return domain.ErrSelectionLocked
	}
	s.product = &asset
	s.touchLocked()
	return nil
}

// ClearProduct removes the product image. Rejected while a remote step is running.
func (s *Sequence) ClearProduct() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lockedLocked() {
		return domain.ErrSelectionLocked
	}
	s.product = nil
	s.touchLocked()
	return nil
}

// SetPrompt is always accepted. A change made before the edit step begins is
// used by the current run.
func (s *Sequence) SetPrompt(text string) {
	s.mu.Lock()
	s.prompt = text
	s.touchLocked()
	s.mu.Unlock()
}

// Reset clears every field and returns to Idle. Results of a run still in
// flight are discarded when they arrive.
func (s *Sequence) Reset() {
	s.mu.Lock()
	from := s.status
	s.run++
	s.persona = nil
	s.product = nil
	s.prompt = ""
	s.merged = ""
	s.final = ""
	s.errMsg = ""
	s.saved = nil
	s.status = domain.RunIdle
	s.touchLocked()
	ev := Event{Kind: EventReset, Run: s.run, From: from, To: domain.RunIdle, Snapshot: s.snapshotLocked()}
	s.mu.Unlock()
	s.notify(context.Background(), ev)
}

// Snapshot returns a copy of the current state.
func (s *Sequence) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Start runs merge, edit and save to completion on the calling goroutine.
func (s *Sequence) Start(ctx context.Context) error {
	run, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	return run(ctx)
}

// Begin checks the preconditions and enters MergingImages. The returned
// function performs the remote steps; it must be called exactly once.
func (s *Sequence) Begin(ctx context.Context) (func(context.Context) error, error) {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return nil, domain.ErrRunInFlight
	}
	if s.status == domain.RunComplete {
		s.mu.Unlock()
		return nil, domain.ErrRunComplete
	}
	if err := s.validateLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	persona := *s.persona
	product := *s.product
	prompt := strings.TrimSpace(s.prompt)
	s.run++
	run := s.run
	s.inFlight = true
	s.merged = ""
	s.final = ""
	s.errMsg = ""
	s.saved = nil
	ev := s.transitionLocked(domain.RunMergingImages)
	s.mu.Unlock()

	s.logger.Info().Int("run", run).Str("persona", persona.ID).Msg("studio: run started")
	s.notify(ctx, ev)

	return func(ctx context.Context) error {
		return s.execute(ctx, run, persona, product, prompt)
	}, nil
}

func (s *Sequence) execute(ctx context.Context, run int, persona domain.PersonaSelection, product domain.ProductAsset, prompt string) error {
	merged, err := s.api.MergeImages(ctx, apiclient.MergeRequest{
		LeftURL:      persona.ImageURL,
		RightURL:     product.DataURL(),
		TargetWidth:  s.opts.MergeWidth,
		TargetHeight: s.opts.MergeHeight,
	})
	if err != nil {
		return s.fail(ctx, run, domain.RunMergingImages, "merge images", err)
	}

	s.mu.Lock()
	if s.run != run {
		s.inFlight = false
		s.mu.Unlock()
		return s.discard(ctx, run, domain.RunMergingImages)
	}
	s.merged = merged.MergedImage
	if current := strings.TrimSpace(s.prompt); current != "" {
		prompt = current
	}
	ev := s.transitionLocked(domain.RunGeneratingFinal)
	s.mu.Unlock()
	s.notify(ctx, ev)

	instruction := BuildInstruction(prompt)
	edited, err := s.api.EditImage(ctx, apiclient.EditRequest{
		InputImage:   merged.MergedImage,
		Prompt:       instruction,
		LLMModel:     s.opts.LLMModel,
		AspectRatio:  s.opts.AspectRatio,
		OutputFormat: s.opts.OutputFormat,
	})
	if err != nil {
		return s.fail(ctx, run, domain.RunGeneratingFinal, "edit image", err)
	}
	if !edited.Success || strings.TrimSpace(edited.Image) == "" {
		msg := edited.Error
		if msg == "" {
			msg = "FLUX generation failed"
		}
		return s.fail(ctx, run, domain.RunGeneratingFinal, "edit image", &domain.UnsuccessfulError{Message: msg})
	}

	s.mu.Lock()
	if s.run != run {
		s.inFlight = false
		s.mu.Unlock()
		return s.discard(ctx, run, domain.RunGeneratingFinal)
	}
	s.final = edited.Image
	s.product = nil
	s.inFlight = false
	ev = s.transitionLocked(domain.RunComplete)
	s.mu.Unlock()
	s.logger.Info().Int("run", run).Msg("studio: run complete")
	s.notify(ctx, ev)

	s.persist(ctx, run, instruction, edited.Image)
	return nil
}

// persist saves the final image. Failures are logged and never change status.
func (s *Sequence) persist(ctx context.Context, run int, instruction, image string) {
	if s.store == nil {
		return
	}
	saved, err := s.store.Store(ctx, generations.StoreRequest{
		Prompt:         instruction,
		EnhancedPrompt: instruction,
		ImageModel:     s.opts.StoredImageModel,
		LLMModel:       s.opts.StoredLLMModel,
		ImageData:      imagePayload(image),
	})

	s.mu.Lock()
	current := s.run == run
	if err == nil && current {
		s.saved = saved
		s.touchLocked()
	}
	ev := Event{Kind: EventSaved, Run: run, From: domain.RunComplete, To: domain.RunComplete, Snapshot: s.snapshotLocked()}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn().Err(err).Int("run", run).Msg("studio: failed to save generation")
		ev.Kind = EventSaveFailed
		ev.Err = err
	}
	if !current {
		return
	}
	s.notify(ctx, ev)
}

func (s *Sequence) fail(ctx context.Context, run int, at domain.RunStatus, step string, cause error) error {
	msg := domain.Message(cause)
	err := fmt.Errorf("studio: %s: %w", step, cause)

	s.mu.Lock()
	s.inFlight = false
	if s.run != run {
		s.mu.Unlock()
		return s.discard(ctx, run, at)
	}
	s.errMsg = msg
	ev := s.transitionLocked(domain.RunFailed)
	ev.Err = err
	s.mu.Unlock()

	s.logger.Warn().Err(cause).Int("run", run).Str("step", step).Msg("studio: run failed")
	s.notify(ctx, ev)
	return err
}

// discard reports that run was superseded by Reset while at the given step.
// The event carries the superseded run number so observers can close it out.
func (s *Sequence) discard(ctx context.Context, run int, at domain.RunStatus) error {
	s.mu.Lock()
	ev := Event{Kind: EventDiscarded, Run: run, From: at, To: s.status, Err: ErrRunDiscarded, Snapshot: s.snapshotLocked()}
	s.mu.Unlock()

	s.logger.Info().Int("run", run).Str("step", string(at)).Msg("studio: run discarded by reset")
	s.notify(ctx, ev)
	return ErrRunDiscarded
}

func (s *Sequence) validateLocked() error {
	if s.persona == nil {
		return domain.Invalid("persona", "select a persona first")
	}
	if s.product == nil {
		return domain.Invalid("product", "upload a product image first")
	}
	if strings.TrimSpace(s.prompt) == "" {
		return domain.Invalid("prompt", "describe how the persona should use the product")
	}
	return nil
}

func (s *Sequence) lockedLocked() bool {
	return s.status == domain.RunMergingImages || s.status == domain.RunGeneratingFinal
}

func (s *Sequence) transitionLocked(to domain.RunStatus) Event {
	from := s.status
	s.status = to
	s.touchLocked()
	return Event{Kind: EventTransition, Run: s.run, From: from, To: to, Snapshot: s.snapshotLocked()}
}

func (s *Sequence) touchLocked() {
	s.updated = time.Now()
}

func (s *Sequence) snapshotLocked() Snapshot {
	snap := Snapshot{
		Run:         s.run,
		Status:      s.status,
		Prompt:      s.prompt,
		MergedImage: s.merged,
		FinalImage:  s.final,
		Error:       s.errMsg,
		Running:     s.inFlight,
		UpdatedAt:   s.updated,
	}
	if s.persona != nil {
		p := *s.persona
		snap.Persona = &p
	}
	if s.product != nil {
		snap.Product = &ProductSummary{MIMEType: s.product.MIMEType, Bytes: len(s.product.Data)}
	}
	if s.saved != nil {
		saved := *s.saved
		snap.Saved = &saved
	}
	return snap
}

func (s *Sequence) notify(ctx context.Context, ev Event) {
	s.mu.Lock()
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()
	for _, o := range observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error().Interface("panic", r).Str("event", string(ev.Kind)).Msg("studio: observer panicked")
				}
			}()
			o.OnEvent(ctx, ev)
		}()
	}
}
