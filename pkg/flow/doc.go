/*
Package flow builds and runs the local execution plan a claimed job
produces: a DAG of Ops keyed by job type, executed in topological
order with dependency-aware failure propagation.

# Builders

BuilderFor looks up a Builder by types.JobType. Each Builder turns a
JobDocument into a Flow with a stable, content-addressed ID:

	pipeline:  docker.run ──► wrap-up
	github:    git.ensure-repo ──► git.checkout ──► docker.run ──► wrap-up
	gitlab:    git.ensure-repo ──► git.checkout ──► docker.run ──► wrap-up

# Running

Runner.Run walks the Flow's Ops in topological order, skipping any op
already present in f.Results (so a resumed Flow never re-executes a
completed step) and short-circuiting an op whose direct dependency
failed instead of invoking its handler. Every op, success or skip, is
persisted through the injected Store before the next one runs.
*/
package flow
