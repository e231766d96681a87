package inject

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecommenderInjector(t testing.TB) *StaticInjector {
	t.Helper()
	inj := NewStaticInjector(recommenderGraph(t))
	t.Cleanup(func() { _ = inj.Close() })
	return inj
}

func TestStaticInjector_Get(t *testing.T) {
	t.Parallel()

	t.Run("root component", func(t *testing.T) {
		inj := newRecommenderInjector(t)
		rec, err := Get[*testRecommender](inj)
		require.NoError(t, err)
		assert.Equal(t, 3.5, rec.Scorer.Score(42))
		assert.Equal(t, "app", rec.Logger.Prefix)
	})

	t.Run("memoized components are shared", func(t *testing.T) {
		inj := newRecommenderInjector(t)
		r1, err := Get[*testRecommender](inj)
		require.NoError(t, err)
		r2, err := Get[*testRecommender](inj)
		require.NoError(t, err)
		assert.Same(t, r1, r2)
	})

	t.Run("non-root component is found by type", func(t *testing.T) {
		inj := newRecommenderInjector(t)
		rec, err := Get[*testRecommender](inj)
		require.NoError(t, err)
		db, err := Get[*testDatabase](inj)
		require.NoError(t, err)

		assert.Same(t, db, rec.Scorer.(*meanScorer).DB)
		assert.Same(t, rec.Logger, db.Logger)
	})

	t.Run("interface lookup", func(t *testing.T) {
		inj := newRecommenderInjector(t)
		s, err := Get[testScorer](inj)
		require.NoError(t, err)
		assert.IsType(t, &meanScorer{}, s)
	})

	t.Run("unknown type returns ErrNoSuchComponent", func(t *testing.T) {
		inj := newRecommenderInjector(t)
		_, err := Get[*ratingDAO](inj)
		assert.ErrorIs(t, err, ErrNoSuchComponent)

		v, err := inj.TryGetInstance(typeOf[*ratingDAO]())
		assert.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("null component is the zero value", func(t *testing.T) {
		b := NewBindings()
		mustBind(t, Bind[testScorer](b).ToNull())
		g := mustGraph(t, NewGraphBuilder().AddBindings(b).AddRoots(typeOf[testScorer]()))

		require.NoError(t, WithInjector(g, func(inj *StaticInjector) error {
			s, err := Get[testScorer](inj)
			assert.Nil(t, s)
			return err
		}))
	})

	t.Run("value types", func(t *testing.T) {
		type settings struct {
			Debug bool
			Port  int
		}
		b := NewBindings()
		mustBind(t, Bind[int](b).To(func() int { return 42 }))
		mustBind(t, Bind[settings](b).To(func(port int) settings { return settings{Debug: true, Port: port} }))

		s := get[settings](t, NewGraphBuilder().AddBindings(b))
		assert.Equal(t, settings{Debug: true, Port: 42}, s)
	})

	t.Run("constructor error is propagated", func(t *testing.T) {
		b := NewBindings()
		mustBind(t, Bind[*testConfig](b).To(func() (*testConfig, error) {
			return nil, errors.New("connection failed")
		}))
		g := mustGraph(t, NewGraphBuilder().AddBindings(b).AddRoots(typeOf[*testConfig]()))

		err := WithInjector(g, func(inj *StaticInjector) error {
			_, err := Get[*testConfig](inj)
			return err
		})
		require.ErrorContains(t, err, "connection failed")
		var ie *InstantiationError
		assert.ErrorAs(t, err, &ie)
	})
}

func TestStaticInjector_GetQualified(t *testing.T) {
	t.Parallel()

	b := NewBindings()
	mustBind(t, Bind[*testConfig](b).To(newTestConfig))
	mustBind(t, Bind[*testConfig](b).Qualified("prod").ToInstance(&testConfig{DSN: "prod"}))
	g := mustGraph(t, NewGraphBuilder().AddBindings(b).AddRoots(typeOf[*qualifiedConsumer]()))
	inj := NewStaticInjector(g)
	defer inj.Close()

	prod, err := GetQualified[*testConfig](inj, "prod")
	require.NoError(t, err)
	assert.Equal(t, "prod", prod.DSN)

	def, err := GetQualified[*testConfig](inj, "")
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost", def.DSN)

	_, err = GetQualified[*testConfig](inj, "staging")
	assert.ErrorIs(t, err, ErrNoSuchComponent)
	assert.ErrorContains(t, err, "@staging")
}

func TestStaticInjector_Close(t *testing.T) {
	t.Parallel()

	t.Run("closes constructed closers in reverse order", func(t *testing.T) {
		var order []string
		fixed := &testClosable{Name: "fixed", Order: &order}

		b := NewBindings()
		mustBind(t, Bind[*testClosable](b).Qualified("fixed").ToInstance(fixed))
		mustBind(t, Bind[*testClosable](b).Qualified("inner").To(func() *testClosable {
			return &testClosable{Name: "inner", Order: &order}
		}))
		mustBind(t, Bind[*testClosable](b).To(func(inner, _ *testClosable) *testClosable {
			return &testClosable{Name: "outer", Order: &order}
		}, Param(0, Qualifier("inner")), Param(1, Qualifier("fixed"))))
		g := mustGraph(t, NewGraphBuilder().AddBindings(b).AddRoots(typeOf[*testClosable]()))

		inj := NewStaticInjector(g)
		_, err := Get[*testClosable](inj)
		require.NoError(t, err)

		require.NoError(t, inj.Close())
		assert.Equal(t, []string{"outer", "inner"}, order)
		assert.False(t, fixed.Closed)
	})

	t.Run("use after close", func(t *testing.T) {
		inj := NewStaticInjector(recommenderGraph(t))
		require.NoError(t, inj.Close())

		_, err := Get[*testRecommender](inj)
		assert.ErrorIs(t, err, ErrAlreadyClosed)
		_, err = inj.Instantiate(inj.Graph().Root())
		assert.ErrorIs(t, err, ErrAlreadyClosed)
		assert.ErrorIs(t, inj.Close(), ErrAlreadyClosed)
	})

	t.Run("WithInjector closes on error", func(t *testing.T) {
		var order []string
		b := NewBindings()
		mustBind(t, Bind[*testClosable](b).To(func() *testClosable {
			return &testClosable{Name: "c", Order: &order}
		}))
		g := mustGraph(t, NewGraphBuilder().AddBindings(b).AddRoots(typeOf[*testClosable]()))

		boom := errors.New("boom")
		err := WithInjector(g, func(inj *StaticInjector) error {
			if _, err := Get[*testClosable](inj); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, []string{"c"}, order)
	})
}

func TestStaticInjector_Concurrent(t *testing.T) {
	t.Parallel()

	b := testBindings(t)
	mustBind(t, Bind[*testLogger](b).Policy(NewInstance).To(newTestLogger))
	g := mustGraph(t, NewGraphBuilder().AddBindings(b).AddRoots(typeOf[*testRecommender]()))
	inj := NewStaticInjector(g)
	defer inj.Close()

	const goroutines = 100
	var wg sync.WaitGroup
	errs := make(chan error, goroutines)
	recs := make(chan *testRecommender, goroutines)

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()

			rec, err := Get[*testRecommender](inj)
			if err != nil {
				errs <- fmt.Errorf("Recommender: %w", err)
				return
			}
			if rec.Logger == nil || rec.Logger.Prefix != "app" {
				errs <- fmt.Errorf("Recommender.Logger = %v", rec.Logger)
				return
			}
			recs <- rec
		}()
	}

	wg.Wait()
	close(errs)
	close(recs)

	for err := range errs {
		t.Errorf("concurrent error: %v", err)
	}
	first := <-recs
	for rec := range recs {
		assert.Same(t, first, rec)
	}
}
