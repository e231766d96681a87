// Package inject builds and instantiates dependency graphs for recommender
// components.
//
// Components are described by binding rules. A rule maps a desired type,
// optionally restricted by qualifier and by the component it is resolved
// within, to a constructor, a struct type, a provider, a fixed instance,
// nil, or another type. A [GraphBuilder] resolves a set of root types
// against the rules into an immutable [Graph] in which identical components
// are merged into one node.
//
// # Quick Start
//
//	b := inject.NewBindings()
//	_ = inject.Bind[ItemScorer](b).To(NewItemMeanScorer)
//	_ = inject.Bind[*RatingDAO](b).ToInstance(dao)
//
//	g, err := inject.NewGraphBuilder().
//	    AddBindings(b).
//	    AddRoots(reflect.TypeFor[ItemScorer]()).
//	    BuildGraph()
//
//	err = inject.WithInjector(g, func(inj *inject.StaticInjector) error {
//	    scorer, err := inject.Get[ItemScorer](inj)
//	    ...
//	})
//
// # Injection points
//
// Constructor parameters are injection points; use [Param] to qualify them
// or mark them [Transient] or [Optional]. Exported struct fields tagged
// `inject:"qualifier,transient,optional"` are injected after construction,
// as are setter methods declared with [Setter]. An unbound struct pointer
// type is satisfied by a zero value with its tagged fields injected.
//
// # Sharing
//
// Components embedding [SharedComponent], or bound with
// [Binding.Shared], may be built once and shared between recommender
// sessions. [RecommenderInstantiator] replaces every node that can be
// shared, meaning it is shareable and all of its non-transient
// dependencies are too, with a node holding its instance.
//
// # Placeholders
//
// [GraphBuilder.BuildUnsolver] rewrites a graph so that bound components
// become placeholders, and [GraphBuilder.BuildSolver] rewrites them back.
// [CheckForPlaceholders] rejects graphs that still hold placeholders for
// anything but a [DataAccessObject].
package inject
