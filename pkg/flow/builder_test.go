package flow

import (
	"testing"

	"github.com/meridian-network/node/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderForKnownTypes(t *testing.T) {
	for _, jt := range []types.JobType{types.JobTypePipeline, types.JobTypeGithub, types.JobTypeGitlab} {
		_, ok := BuilderFor(jt)
		assert.True(t, ok, "expected a builder registered for %s", jt)
	}
}

func TestBuilderForUnknownType(t *testing.T) {
	_, ok := BuilderFor(types.JobType("bogus"))
	assert.False(t, ok)
}

func TestPipelineBuilderIsStable(t *testing.T) {
	b, ok := BuilderFor(types.JobTypePipeline)
	require.True(t, ok)

	doc := types.JobDocument{
		Type:     types.JobTypePipeline,
		Pipeline: types.PipelineSpec{Image: "alpine", Commands: []string{"echo", "hi"}},
	}

	f1, err := b.Build("job1", "run1", doc)
	require.NoError(t, err)
	f2, err := b.Build("job1", "run1", doc)
	require.NoError(t, err)

	assert.Equal(t, f1.ID, f2.ID)
	assert.Len(t, f1.Ops, 2)
}

func TestPipelineBuilderDiffersByInput(t *testing.T) {
	b, _ := BuilderFor(types.JobTypePipeline)

	doc1 := types.JobDocument{Pipeline: types.PipelineSpec{Image: "alpine"}}
	doc2 := types.JobDocument{Pipeline: types.PipelineSpec{Image: "ubuntu"}}

	f1, err := b.Build("job1", "run1", doc1)
	require.NoError(t, err)
	f2, err := b.Build("job1", "run1", doc2)
	require.NoError(t, err)

	assert.NotEqual(t, f1.ID, f2.ID)
}

func TestGithubBuilderOrdersOps(t *testing.T) {
	b, ok := BuilderFor(types.JobTypeGithub)
	require.True(t, ok)

	doc := types.JobDocument{
		URL:      "https://github.com/example/repo",
		Commit:   "abc123",
		Pipeline: types.PipelineSpec{Image: "node:20", Commands: []string{"npm", "test"}},
	}

	f, err := b.Build("job2", "run2", doc)
	require.NoError(t, err)
	require.Len(t, f.Ops, 4)

	order, err := topologicalOrder(f.Ops)
	require.NoError(t, err)
	assert.Equal(t, []string{"git.ensure-repo", "git.checkout", "docker.run", "wrap-up"}, order)
}
