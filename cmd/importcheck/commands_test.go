package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/recordimport/internal/core"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--no-color"}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSchemasCommand(t *testing.T) {
	out, _, err := run(t, "schemas")
	require.NoError(t, err)

	assert.Contains(t, out, "contact")
	assert.Contains(t, out, "customers")
	assert.Contains(t, out, "name:string*")
	assert.Contains(t, out, "segment:enum(enterprise|mid-market|smb)")
}

func TestTemplateCommand(t *testing.T) {
	out, _, err := run(t, "template", "contact")
	require.NoError(t, err)
	assert.Equal(t, "name,email,phone,company,title,subscribed\n", out)

	_, _, err = run(t, "template", "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUnknownSchema))
	hints := errors.GetAllHints(err)
	require.Len(t, hints, 1)
	assert.Contains(t, hints[0], "contact")
}

func TestValidateCommand(t *testing.T) {
	path := writeFile(t, "name,email,notes\nAnn,a@x.com,x\n,bad,y\nBob,,z\n")

	out, _, err := run(t, "validate", "--schema", "contact", path)
	require.NoError(t, err)

	assert.Contains(t, out, "rows 3")
	assert.Contains(t, out, "valid 2")
	assert.Contains(t, out, "invalid 1")
	assert.Contains(t, out, "ignored columns: notes")
	assert.Contains(t, out, "missing columns: phone, company, title, subscribed")
	assert.Contains(t, out, "name: required; email: format (not an email address)")
}

func TestValidateCommand_Strict(t *testing.T) {
	path := writeFile(t, "name,email\n,bad\n")

	_, _, err := run(t, "validate", "--strict", "-s", "contact", path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errInvalidRows))

	clean := writeFile(t, "name\nAnn\n")
	_, _, err = run(t, "validate", "--strict", "-s", "contact", clean)
	assert.NoError(t, err)
}

func TestValidateCommand_InvalidOut(t *testing.T) {
	path := writeFile(t, "name,email\nAnn,a@x.com\n,bad\n")
	dest := filepath.Join(t.TempDir(), "invalid.csv")

	out, _, err := run(t, "validate", "-s", "contact", "--invalid-out", dest, path)
	require.NoError(t, err)
	assert.Contains(t, out, dest)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t,
		"_line,_errors,name,email\n3,name: required; email: format (not an email address),,bad\n",
		string(data))
}

func TestValidateCommand_Limit(t *testing.T) {
	path := writeFile(t, "name,email\n,a@x.com\n,b@x.com\n,c@x.com\n")

	out, _, err := run(t, "validate", "-s", "contact", "--limit", "1", path)
	require.NoError(t, err)
	assert.Contains(t, out, "... 2 more")
}

func TestValidateCommand_Errors(t *testing.T) {
	_, _, err := run(t, "validate", writeFile(t, "name\nAnn\n"))
	require.Error(t, err, "schema flag is required")

	_, _, err = run(t, "validate", "-s", "contact", filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, _, err = run(t, "validate", "-s", "contact", writeFile(t, "name,Name\nAnn,Ann\n"))
	require.Error(t, err)
	var decodeErr *core.DecodeError
	assert.True(t, errors.As(err, &decodeErr))
}

func TestNormalizeCommand(t *testing.T) {
	path := writeFile(t, "email,name,extra\na@x.com,  Ann  ,z\nbad,,q\n")

	out, _, err := run(t, "normalize", "-s", "contact", path)
	require.NoError(t, err)
	assert.Equal(t, "name,email,phone,company,title,subscribed\nAnn,a@x.com,,,,\n", out)

	out, _, err = run(t, "normalize", "-s", "contact", "--fields", "email,name", path)
	require.NoError(t, err)
	assert.Equal(t, "email,name\na@x.com,Ann\n", out)
}

func TestNormalizeCommand_OutputFile(t *testing.T) {
	path := writeFile(t, "name,email\nAnn,\n,\n")
	dest := filepath.Join(t.TempDir(), "clean.csv")

	_, stderr, err := run(t, "normalize", "-s", "contact", "-o", dest, path)
	require.NoError(t, err)
	assert.Contains(t, stderr, "1 rows written")
	assert.Contains(t, stderr, "1 invalid rows skipped")

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "name,email,phone,company,title,subscribed\nAnn,,,,,\n", string(data))
}
