package inject

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sessionCache is a shareable closer returned by value whose dynamic value
// cannot be compared with ==.
type sessionCache struct {
	SharedComponent
	Meta   any
	closed *bool
}

func (c sessionCache) Close() error {
	*c.closed = true
	return nil
}

// trainedModel is a shareable closer built from a transient closer.
type trainedModel struct {
	SharedComponent
	testClosable
	Mean float64
}

type modelFixture struct {
	order []string
	built int
	data  *testClosable
	graph *Graph
}

func newModelFixture(t testing.TB, train func(*testClosable) (*trainedModel, error)) *modelFixture {
	t.Helper()
	f := &modelFixture{}
	b := NewBindings()
	mustBind(t, Bind[*testClosable](b).To(func() *testClosable {
		f.built++
		f.data = &testClosable{Name: "data", Order: &f.order}
		return f.data
	}))
	mustBind(t, Bind[*trainedModel](b).To(train, Param(0, Transient())))
	f.graph = mustGraph(t, NewGraphBuilder().AddBindings(b).AddRoots(typeOf[*trainedModel]()))
	return f
}

func (f *modelFixture) train(d *testClosable) (*trainedModel, error) {
	return &trainedModel{testClosable: testClosable{Name: "model", Order: &f.order}, Mean: 4}, nil
}

func TestRecommenderInstantiator_Instantiate(t *testing.T) {
	t.Parallel()

	t.Run("shared nodes hold instances", func(t *testing.T) {
		var f *modelFixture
		f = newModelFixture(t, func(d *testClosable) (*trainedModel, error) { return f.train(d) })

		ri := NewRecommenderInstantiator(f.graph)
		assert.Same(t, f.graph, ri.Graph())

		g, err := ri.Instantiate()
		require.NoError(t, err)
		assert.Equal(t, 1, f.built)

		id := nodeOf(t, g, typeOf[*trainedModel]())
		v, ok := Value(g.Label(id).Satisfaction)
		require.True(t, ok)
		model := v.(*trainedModel)
		assert.Equal(t, 4.0, model.Mean)

		t.Run("transient closers are closed", func(t *testing.T) {
			assert.True(t, f.data.Closed)
			assert.False(t, model.Closed)
			assert.Equal(t, []string{"data"}, f.order)
		})

		t.Run("transient edges are dropped", func(t *testing.T) {
			assert.Empty(t, g.Edges(id))
			_, ok := FindSatisfyingNode(g, AnyQualifierMatcher(), typeOf[*testClosable]())
			assert.False(t, ok)
		})

		t.Run("original graph is unchanged", func(t *testing.T) {
			assert.False(t, f.graph.Label(nodeOf(t, f.graph, typeOf[*trainedModel]())).Satisfaction.HasInstance())
		})

		t.Run("injector reuses the instance", func(t *testing.T) {
			require.NoError(t, WithInjector(g, func(inj *StaticInjector) error {
				got, err := Get[*trainedModel](inj)
				require.NoError(t, err)
				assert.Same(t, model, got)
				return nil
			}))
			assert.False(t, model.Closed, "injector must not close instances it did not build")
		})
	})

	t.Run("construction failure still closes transient closers", func(t *testing.T) {
		f := newModelFixture(t, func(*testClosable) (*trainedModel, error) {
			return nil, errors.New("training failed")
		})

		g, err := NewRecommenderInstantiator(f.graph).Instantiate()
		assert.Nil(t, g)
		require.ErrorContains(t, err, "training failed")

		var ie *InstantiationError
		require.ErrorAs(t, err, &ie)
		assert.Contains(t, ie.Node, "trainedModel")
		assert.True(t, f.data.Closed)
	})

	t.Run("close failure is reported", func(t *testing.T) {
		b := NewBindings()
		mustBind(t, Bind[*testFailCloser](b).To(func() *testFailCloser { return &testFailCloser{} }))
		mustBind(t, Bind[*trainedModel](b).To(func(*testFailCloser) *trainedModel {
			return &trainedModel{Mean: 1}
		}, Param(0, Transient())))
		g := mustGraph(t, NewGraphBuilder().AddBindings(b).AddRoots(typeOf[*trainedModel]()))

		out, err := NewRecommenderInstantiator(g).Instantiate()
		assert.Nil(t, out)
		assert.ErrorContains(t, err, "close failed")
	})

	t.Run("shared dependencies are built once", func(t *testing.T) {
		configs := 0
		b := testBindings(t)
		mustBind(t, Bind[*testLogger](b).Shared().To(newTestLogger))
		mustBind(t, Bind[*testConfig](b).Shared().To(func() *testConfig {
			configs++
			return newTestConfig()
		}))
		mustBind(t, Bind[*testDatabase](b).Shared().To(newTestDatabase))
		g := mustGraph(t, NewGraphBuilder().AddBindings(b).AddRoots(typeOf[*testRecommender]()))
		require.Len(t, ShareableNodes(g), 4)

		ig, err := NewRecommenderInstantiator(g).Instantiate()
		require.NoError(t, err)
		assert.Equal(t, 1, configs)
		assert.Equal(t, g.Size(), ig.Size())

		cfg, _ := Value(ig.Label(nodeOf(t, ig, typeOf[*testConfig]())).Satisfaction)
		db, _ := Value(ig.Label(nodeOf(t, ig, typeOf[*testDatabase]())).Satisfaction)
		require.NotNil(t, db)
		assert.Same(t, cfg, db.(*testDatabase).Config)

		assert.False(t, ig.Label(nodeOf(t, ig, typeOf[*testRecommender]())).Satisfaction.HasInstance())
	})

	t.Run("shared closer with uncomparable value", func(t *testing.T) {
		closed := false
		b := NewBindings()
		mustBind(t, Bind[sessionCache](b).To(func() sessionCache {
			return sessionCache{Meta: []int{1}, closed: &closed}
		}))
		g := mustGraph(t, NewGraphBuilder().AddBindings(b).AddRoots(typeOf[sessionCache]()))

		var ig *Graph
		require.NotPanics(t, func() {
			var err error
			ig, err = NewRecommenderInstantiator(g).Instantiate()
			require.NoError(t, err)
		})

		v, ok := Value(ig.Label(nodeOf(t, ig, typeOf[sessionCache]())).Satisfaction)
		require.True(t, ok)
		assert.Equal(t, []int{1}, v.(sessionCache).Meta)
		assert.False(t, closed, "shared instances stay open")
	})
}

func TestRecommenderInstantiator_Simulate(t *testing.T) {
	t.Parallel()

	var f *modelFixture
	f = newModelFixture(t, func(d *testClosable) (*trainedModel, error) { return f.train(d) })

	g, err := NewRecommenderInstantiator(f.graph).Simulate()
	require.NoError(t, err)
	assert.Zero(t, f.built)

	label := g.Label(nodeOf(t, g, typeOf[*trainedModel]()))
	assert.Equal(t, "null of *inject.trainedModel", label.Satisfaction.String())
	assert.Equal(t, 1, g.Size())
}

func TestNodeInstantiator(t *testing.T) {
	t.Parallel()

	g := recommenderGraph(t)
	lm := NewLifecycleManager()
	ni := NewNodeInstantiator(lm)

	rec, err := ni.Instantiate(g, nodeOf(t, g, typeOf[*testRecommender]()))
	require.NoError(t, err)
	db, err := ni.Instantiate(g, nodeOf(t, g, typeOf[*testDatabase]()))
	require.NoError(t, err)

	assert.Same(t, db, rec.(*testRecommender).Scorer.(*meanScorer).DB)
	assert.Same(t, rec.(*testRecommender).Logger, db.(*testDatabase).Logger)
	assert.Zero(t, lm.Len())

	t.Run("placeholder fails", func(t *testing.T) {
		b := NewBindings()
		mustBind(t, Bind[*testConfig](b).ToPlaceholder())
		g := mustGraph(t, NewGraphBuilder().AddBindings(b).AddRoots(typeOf[*testConfig]()))

		_, err := NewNodeInstantiator(nil).Instantiate(g, nodeOf(t, g, typeOf[*testConfig]()))
		assert.ErrorIs(t, err, ErrPlaceholder)
	})
}
