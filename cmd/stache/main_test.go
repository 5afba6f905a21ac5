package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRenderCommand(t *testing.T) {
	dir := t.TempDir()
	tpl := writeFile(t, dir, "page.tpl", "{{#items}}<{{name|upper}}>{{/items}}")
	data := writeFile(t, dir, "data.yaml", "items:\n  - name: a\n  - name: b\n")

	out, _, err := runCLI(t, "render", tpl, "-d", data)
	require.NoError(t, err)
	assert.Equal(t, "<A><B>", out)
}

func TestRenderCommandOptions(t *testing.T) {
	dir := t.TempDir()
	partials := filepath.Join(dir, "partials")
	require.NoError(t, os.Mkdir(partials, 0o755))
	writeFile(t, partials, "_row.tpl", "[<%name%>]")

	tpl := writeFile(t, dir, "page.tpl", "<%#rows%>\n<%>row%>\n<%/rows%>\n")
	data := writeFile(t, dir, "data.json", `{"rows": [{"name": "x"}, {"name": "y"}]}`)
	outFile := filepath.Join(dir, "out.txt")

	stdout, _, err := runCLI(t, "render", tpl,
		"--data", data,
		"--partials", partials,
		"--delims", "<% %>",
		"--trim-standalone",
		"-o", outFile,
	)
	require.NoError(t, err)
	assert.Empty(t, stdout)

	got, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Equal(t, "[x]\n[y]\n", string(got))
}

func TestRenderCommandSchema(t *testing.T) {
	dir := t.TempDir()
	tpl := writeFile(t, dir, "page.tpl", "{{name}}")
	data := writeFile(t, dir, "data.json", `{"name": 5}`)
	schema := writeFile(t, dir, "schema.json", `{"type": "object", "properties": {"name": {"type": "string"}}}`)

	_, _, err := runCLI(t, "render", tpl, "-d", data, "--schema", schema)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema")
}

func TestRenderCommandErrors(t *testing.T) {
	dir := t.TempDir()

	_, _, err := runCLI(t, "render", filepath.Join(dir, "missing.tpl"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := writeFile(t, dir, "bad.tpl", "{{x|nope}}")
	_, _, err = runCLI(t, "render", bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.tpl")

	out, _, err := runCLI(t, "render", bad, "--lenient-filters")
	require.NoError(t, err)
	assert.Empty(t, out)

	_, _, err = runCLI(t, "render", bad, "--delims", "<%")
	assert.Error(t, err)
}

func TestCheckCommand(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.tpl", "{{#a}}{{b}}{{/a}}")
	bad := writeFile(t, dir, "bad.tpl", "{{#a}}")

	out, _, err := runCLI(t, "check", good)
	require.NoError(t, err)
	assert.Contains(t, out, "good.tpl: ok")

	out, errOut, err := runCLI(t, "check", good, bad)
	assert.ErrorIs(t, err, errCheckFailed)
	assert.Contains(t, out, "good.tpl: ok")
	assert.Contains(t, errOut, "unterminated section")
}

func TestTokensCommand(t *testing.T) {
	dir := t.TempDir()
	tpl := writeFile(t, dir, "t.tpl", "Hi {{name}}")

	out, _, err := runCLI(t, "tokens", tpl)
	require.NoError(t, err)
	assert.Contains(t, out, "text")
	assert.Contains(t, out, "variable")
	assert.Contains(t, out, `"name"`)
}
