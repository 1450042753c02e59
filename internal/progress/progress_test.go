package progress

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhinpan/cc-boss/internal/model"
)

func TestInjectPromptAppendsInstruction(t *testing.T) {
	out := InjectPrompt("do the thing")
	assert.Contains(t, out, "do the thing")
	assert.Contains(t, out, "PROGRESS.md")
}

func TestAppendCreatesFileAndWritesEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "PROGRESS.md")

	summary := "fixed the bug"
	task := &model.Task{ID: 1, Prompt: "fix the bug", Status: model.StatusDone, ResultSummary: &summary}

	require.NoError(t, Append(path, task))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Task #1")
	assert.Contains(t, string(content), "fixed the bug")
}

func TestAppendAccumulatesEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "PROGRESS.md")

	task1 := &model.Task{ID: 1, Prompt: "first", Status: model.StatusDone}
	task2 := &model.Task{ID: 2, Prompt: "second", Status: model.StatusFailed}

	require.NoError(t, Append(path, task1))
	require.NoError(t, Append(path, task2))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Task #1")
	assert.Contains(t, string(content), "Task #2")
}
