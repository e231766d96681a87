package inject

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

// Shared test types and constructors used across test files.

// mustBind fails the test if a binding could not be added.
func mustBind(t testing.TB, err error) {
	t.Helper()
	require.NoError(t, err)
}

// mustGraph fails the test if gb cannot build its graph.
func mustGraph(t testing.TB, gb *GraphBuilder) *Graph {
	t.Helper()
	g, err := gb.BuildGraph()
	require.NoError(t, err)
	return g
}

// nodeOf returns the closest node producing typ, failing if there is none.
func nodeOf(t testing.TB, g *Graph, typ reflect.Type) NodeID {
	t.Helper()
	id, ok := FindSatisfyingNode(g, AnyQualifierMatcher(), typ)
	require.True(t, ok, "no node for %s", typ)
	return id
}

func typeOf[T any]() reflect.Type { return reflect.TypeFor[T]() }

type testLogger struct{ Prefix string }
type testConfig struct{ DSN string }

type testDatabase struct {
	Config *testConfig
	Logger *testLogger
}

type testScorer interface {
	Score(item int64) float64
}

// meanScorer is shareable; the others are not.
type meanScorer struct {
	SharedComponent
	DB   *testDatabase
	Mean float64
}

func (s *meanScorer) Score(int64) float64 { return s.Mean }

type constScorer struct{ Value float64 }

func (s *constScorer) Score(int64) float64 { return s.Value }

type testRecommender struct {
	Scorer testScorer
	Logger *testLogger
}

type testCircA struct {
	B *testCircB `inject:""`
}
type testCircB struct {
	C *testCircC `inject:""`
}
type testCircC struct {
	A *testCircA `inject:""`
}

type ratingDAO struct {
	DAOComponent
	Path string
}

type daoConsumer struct {
	DAO *ratingDAO `inject:""`
}

func newTestLogger() *testLogger { return &testLogger{Prefix: "app"} }
func newTestConfig() *testConfig { return &testConfig{DSN: "postgres://localhost"} }

func newTestDatabase(cfg *testConfig, log *testLogger) *testDatabase {
	return &testDatabase{Config: cfg, Logger: log}
}

func newMeanScorer(db *testDatabase) *meanScorer {
	return &meanScorer{DB: db, Mean: 3.5}
}

func newTestRecommender(s testScorer, log *testLogger) *testRecommender {
	return &testRecommender{Scorer: s, Logger: log}
}

// testBindings binds the recommender stack:
//
//	*testRecommender -> testScorer (*meanScorer) -> *testDatabase -> *testConfig
//	                 \-> *testLogger <-----------------------------/
func testBindings(t testing.TB) *Bindings {
	t.Helper()
	b := NewBindings()
	mustBind(t, Bind[*testLogger](b).To(newTestLogger))
	mustBind(t, Bind[*testConfig](b).To(newTestConfig))
	mustBind(t, Bind[*testDatabase](b).To(newTestDatabase))
	mustBind(t, Bind[testScorer](b).To(newMeanScorer))
	mustBind(t, Bind[*testRecommender](b).To(newTestRecommender))
	return b
}

// testClosable implements io.Closer and records the order it was closed
// in.
type testClosable struct {
	Name   string
	Closed bool
	Order  *[]string
}

func (c *testClosable) Close() error {
	c.Closed = true
	if c.Order != nil {
		*c.Order = append(*c.Order, c.Name)
	}
	return nil
}

// testFailCloser implements io.Closer but returns an error.
type testFailCloser struct{}

func (f *testFailCloser) Close() error {
	return errors.New("close failed")
}
