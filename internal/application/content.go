package application

import (
	"context"
	"fmt"
	"time"

	"github.com/escalopa/quran-recite-feedback/internal/domain"
	"github.com/escalopa/quran-recite-feedback/internal/observe"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	facetText            = "text"
	facetTranslation     = "translation"
	facetTransliteration = "transliteration"
	facetAudio           = "audio"
)

// ContentRepository assembles aligned verse sets from per-edition listings.
type ContentRepository struct {
	content  domain.ContentPort
	editions domain.EditionTable
	metrics  *observe.Metrics
	log      *zap.Logger
}

func NewContentRepository(content domain.ContentPort, editions domain.EditionTable, metrics *observe.Metrics, logger *zap.Logger) *ContentRepository {
	if metrics == nil {
		metrics = observe.NopMetrics()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContentRepository{
		content:  content,
		editions: editions,
		metrics:  metrics,
		log:      logger.Named("content"),
	}
}

// Editions returns the configured edition table.
func (r *ContentRepository) Editions() domain.EditionTable {
	return r.editions
}

// Surahs lists every chapter.
func (r *ContentRepository) Surahs(ctx context.Context) ([]domain.Surah, error) {
	return r.content.ListSurahs(ctx)
}

// Surah returns the metadata of one chapter.
func (r *ContentRepository) Surah(ctx context.Context, number int) (*domain.Surah, error) {
	return r.content.Surah(ctx, number)
}

// Load fetches text, translation, transliteration and audio for sel in
// parallel. Text, translation and audio must all succeed and align;
// transliteration degrades to empty.
func (r *ContentRepository) Load(ctx context.Context, sel domain.Selection, translation, reciter string) (*domain.VerseSet, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	if err := r.checkEditions(translation, reciter); err != nil {
		return nil, err
	}

	start := time.Now()
	defer r.observe(ctx, "load", start)

	var text *domain.EditionListing
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		l, err := r.fetch(gctx, sel, facetText, r.editions.Text)
		text = l
		return err
	})
	facets, wait := r.fetchEditions(gctx, g, sel, translation, reciter)
	if err := wait(); err != nil {
		return nil, err
	}

	set := &domain.VerseSet{
		Selection: sel,
		Verses:    text.Verses,
		Surahs:    text.Surahs,
	}
	if err := facets.apply(set); err != nil {
		return nil, err
	}

	r.log.Debug("verse set loaded",
		zap.Stringer("selection", sel),
		zap.Int("verses", set.Len()),
		zap.Bool("transliteration", len(set.Transliterations) > 0),
	)
	return set, nil
}

// Refresh re-fetches the edition-dependent facets of set. Verse text is kept.
func (r *ContentRepository) Refresh(ctx context.Context, set *domain.VerseSet, translation, reciter string) (*domain.VerseSet, error) {
	if set == nil {
		return nil, domain.ErrNoVerse
	}
	if err := r.checkEditions(translation, reciter); err != nil {
		return nil, err
	}

	start := time.Now()
	defer r.observe(ctx, "refresh", start)

	g, gctx := errgroup.WithContext(ctx)
	facets, wait := r.fetchEditions(gctx, g, set.Selection, translation, reciter)
	if err := wait(); err != nil {
		return nil, err
	}

	updated := &domain.VerseSet{
		Selection: set.Selection,
		Verses:    set.Verses,
		Surahs:    set.Surahs,
	}
	if err := facets.apply(updated); err != nil {
		return nil, err
	}
	return updated, nil
}

type editionFacets struct {
	translation     *domain.EditionListing
	transliteration *domain.EditionListing
	audio           *domain.EditionListing
}

// fetchEditions schedules the translation, transliteration and audio
// fetches on g. The returned wait joins g.
func (r *ContentRepository) fetchEditions(ctx context.Context, g *errgroup.Group, sel domain.Selection, translation, reciter string) (*editionFacets, func() error) {
	f := &editionFacets{}

	g.Go(func() error {
		l, err := r.fetch(ctx, sel, facetTranslation, translation)
		f.translation = l
		return err
	})
	g.Go(func() error {
		l, err := r.fetch(ctx, sel, facetAudio, reciter)
		f.audio = l
		return err
	})
	g.Go(func() error {
		l, err := r.fetch(ctx, sel, facetTransliteration, r.editions.Transliteration)
		if err != nil {
			r.log.Warn("transliteration unavailable", zap.Stringer("selection", sel), zap.Error(err))
			return nil
		}
		f.transliteration = l
		return nil
	})

	return f, g.Wait
}

// apply writes the facets into set, checking alignment against set.Verses.
func (f *editionFacets) apply(set *domain.VerseSet) error {
	n := len(set.Verses)
	if len(f.translation.Verses) != n {
		return fmt.Errorf("%w: %d verses, %d translations", domain.ErrFacetMismatch, n, len(f.translation.Verses))
	}
	if len(f.audio.Audio) != n {
		return fmt.Errorf("%w: %d verses, %d audio clips", domain.ErrFacetMismatch, n, len(f.audio.Audio))
	}

	set.Translations = f.translation.Texts()
	set.Audio = f.audio.Audio
	if f.transliteration != nil && len(f.transliteration.Verses) == n {
		set.Transliterations = f.transliteration.Texts()
	}
	return nil
}

func (r *ContentRepository) fetch(ctx context.Context, sel domain.Selection, facet, edition string) (*domain.EditionListing, error) {
	l, err := r.content.Verses(ctx, sel, edition)
	if err != nil {
		r.metrics.ContentFacetErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("facet", facet)))
		return nil, fmt.Errorf("fetch %s: %w", facet, err)
	}
	return l, nil
}

func (r *ContentRepository) checkEditions(translation, reciter string) error {
	if _, err := r.editions.Translation(translation); err != nil {
		return err
	}
	if _, err := r.editions.Reciter(reciter); err != nil {
		return err
	}
	return nil
}

func (r *ContentRepository) observe(ctx context.Context, op string, start time.Time) {
	r.metrics.ContentLoadDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("op", op)))
}
