package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eegprep/eegprep/internal/errors"
	"github.com/eegprep/eegprep/internal/pipeline"
)

func TestSelectSpecs(t *testing.T) {
	t.Parallel()

	specs, err := selectSpecs([]string{"physionet", "BCI_IV_2a", "PHYSIONET"})
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "Physionet", specs[0].Name)
	assert.Equal(t, "BCI_IV_2a", specs[1].Name)

	specs, err = selectSpecs([]string{"bci3a", "All"})
	require.NoError(t, err)
	assert.Len(t, specs, 4)

	_, err = selectSpecs([]string{"bci2a", "eyes"})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestTolerable(t *testing.T) {
	t.Parallel()

	missing := &pipeline.Report{Dataset: "BCI_IV_2b", Err: errors.MissingInput(errors.NewStd("no such directory"), "/data/BCI_IV_2b")}
	ok := &pipeline.Report{Dataset: "BCI_IV_2a", Workers: 1}
	cancelled := &pipeline.Report{Dataset: "Physionet", Workers: 2, Err: errors.New(errors.NewStd("context canceled")).
		Category(errors.CategoryCancellation).
		Build()}

	assert.True(t, tolerable([]string{"all"}, []*pipeline.Report{ok, missing}))
	assert.False(t, tolerable([]string{"bci2b"}, []*pipeline.Report{missing}))
	assert.False(t, tolerable([]string{"all"}, []*pipeline.Report{ok, missing, cancelled}))
}
