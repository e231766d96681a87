// Command lenskit-demo loads a ratings file into an indexed entity store,
// wires a small item-mean recommender through the inject graph and prints
// the top items. Run it with:
//
//	go run ./cmd/lenskit-demo -ratings ratings.jsonl -n 5
//
// Without -ratings a built-in sample is used. -describe prints the
// component graph as JSON instead of recommendations.
package main

import (
	"cmp"
	"flag"
	"fmt"
	"io"
	"os"
	"reflect"
	"slices"
	"strings"

	"github.com/ARTM2000/lenskit/config"
	"github.com/ARTM2000/lenskit/entities"
	"github.com/ARTM2000/lenskit/inject"
	"github.com/ARTM2000/lenskit/internal/logging"
	"github.com/ARTM2000/lenskit/store"
)

const sampleRatings = `
{"id": 1, "user": 10, "item": 100, "rating": 4.0}
{"id": 2, "user": 10, "item": 101, "rating": 2.5}
{"id": 3, "user": 11, "item": 100, "rating": 5.0}
{"id": 4, "user": 11, "item": 102, "rating": 3.5}
{"id": 5, "user": 12, "item": 101, "rating": 3.0}
{"id": 6, "user": 12, "item": 102, "rating": 4.5}
{"id": 7, "user": 12, "item": 103, "rating": 1.0}
`

// ---------------------------------------------------------------------------
// Components
// ---------------------------------------------------------------------------

// RatingData holds the rating collection and the item collection derived
// from it.
type RatingData struct {
	inject.DAOComponent
	Ratings *store.EntityCollection
	Items   *store.EntityCollection
}

// ItemScorer scores items.
type ItemScorer interface {
	Score(item int64) (float64, bool)
}

// ItemMeanScorer scores an item by its mean rating.
type ItemMeanScorer struct {
	inject.SharedComponent
	data *RatingData
}

func NewItemMeanScorer(data *RatingData) *ItemMeanScorer {
	return &ItemMeanScorer{data: data}
}

func (s *ItemMeanScorer) Score(item int64) (float64, bool) {
	rs := s.data.Ratings.Find(entities.AttrItem, item)
	if len(rs) == 0 {
		return 0, false
	}
	var sum float64
	for _, r := range rs {
		v, err := r.GetDouble(entities.AttrRating)
		if err != nil {
			return 0, false
		}
		sum += v
	}
	return sum / float64(len(rs)), true
}

// Recommender ranks every known item with its scorer.
type Recommender struct {
	Data   *RatingData `inject:""`
	Scorer ItemScorer  `inject:""`
}

type scoredItem struct {
	item  int64
	score float64
}

func (r *Recommender) Recommend(n int) []scoredItem {
	var out []scoredItem
	for _, item := range r.Data.Items.IDs() {
		if s, ok := r.Scorer.Score(item); ok {
			out = append(out, scoredItem{item: item, score: s})
		}
	}
	slices.SortFunc(out, func(a, b scoredItem) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.item, b.item)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

func loadRatings(cfg *config.Config, r io.Reader) (*RatingData, error) {
	reg := cfg.EntityDefaults()
	defaults, err := reg.Lookup(entities.TypeRating)
	if err != nil {
		return nil, err
	}
	if defaults == nil {
		return nil, fmt.Errorf("no entity defaults for %s", entities.TypeRating)
	}

	ratings, err := store.LoadJSON(r, entities.JSONFormatFor(defaults), entities.AttrUser, entities.AttrItem)
	if err != nil {
		return nil, fmt.Errorf("loading ratings: %w", err)
	}

	items := store.NewCollectionBuilder(entities.TypeItem)
	for _, d := range defaults.DefaultDerivations() {
		if d.Type() != entities.TypeItem {
			continue
		}
		if err := store.Derive(d, items, ratings); err != nil {
			return nil, err
		}
	}
	itemColl, err := items.Build()
	if err != nil {
		return nil, err
	}
	return &RatingData{Ratings: ratings, Items: itemColl}, nil
}

func buildGraph(cfg *config.Config, data *RatingData) (*inject.Graph, error) {
	b := inject.NewBindings()
	if err := inject.Bind[*RatingData](b).ToInstance(data); err != nil {
		return nil, err
	}
	if err := inject.Bind[ItemScorer](b).To(NewItemMeanScorer); err != nil {
		return nil, err
	}

	opts, err := cfg.GraphBuilderOptions()
	if err != nil {
		return nil, err
	}
	return inject.NewGraphBuilder(opts...).
		AddBindings(b).
		AddRoots(reflect.TypeFor[*Recommender]()).
		BuildGraph()
}

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("lenskit-demo", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML configuration file")
	ratingsPath := fs.String("ratings", "", "JSON-lines ratings file")
	n := fs.Int("n", 3, "number of items to recommend")
	describe := fs.Bool("describe", false, "print the component graph as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	cfg.ApplyLogging()
	log := logging.Component("lenskit-demo")

	var in io.Reader = strings.NewReader(sampleRatings)
	if *ratingsPath != "" {
		f, err := os.Open(*ratingsPath)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	data, err := loadRatings(cfg, in)
	if err != nil {
		return err
	}
	log.Info().
		Int("ratings", data.Ratings.Size()).
		Int("items", data.Items.Size()).
		Str("hash", data.Ratings.ContentHash()).
		Msg("loaded ratings")

	g, err := buildGraph(cfg, data)
	if err != nil {
		return err
	}

	if *describe {
		out, err := g.MarshalJSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout, string(out))
		return err
	}

	return inject.WithInjector(g, func(inj *inject.StaticInjector) error {
		rec, err := inject.Get[*Recommender](inj)
		if err != nil {
			return err
		}
		for _, s := range rec.Recommend(*n) {
			fmt.Fprintf(stdout, "%d\t%.2f\n", s.item, s.score)
		}
		return nil
	})
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log := logging.Logger()
		log.Fatal().Err(err).Msg("lenskit-demo failed")
	}
}
