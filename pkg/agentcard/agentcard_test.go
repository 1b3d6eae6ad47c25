package agentcard

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDownloader struct {
	data       []byte
	err        error
	gotVersion string
}

func (f *fakeDownloader) DownloadAgentFiles(ctx context.Context, agentName, version string) ([]byte, error) {
	f.gotVersion = version
	return f.data, f.err
}

func makeTarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0644,
			Size: int64(len(content)),
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

// TestResolveShippedCard tests that a shipped AgentCard.json passes
// through with the deployment overlay stamped on top
func TestResolveShippedCard(t *testing.T) {
	tarball := makeTarGz(t, map[string]string{
		"AgentCard.json": `{
			"name": "My Agent",
			"description": "summarises documents",
			"skills": ["summarise"],
			"deployment_type": "docker",
			"version": "0.9.0"
		}`,
		"main.py": "print('hi')",
	})

	resolver := NewResolver(&fakeDownloader{data: tarball}, "", "")
	card := resolver.Resolve(context.Background(), &Request{
		AgentName: "my-agent",
		Version:   "1.2.0",
		PublicURL: "http://gw.example/agents/agent-my-agent-100",
		OwnerID:   "user-123",
	})

	// source fields pass through
	assert.Equal(t, "My Agent", card["name"])
	assert.Equal(t, "summarises documents", card["description"])

	// overlay always wins
	assert.Equal(t, "my-agent", card["id"])
	assert.Equal(t, "http://gw.example/agents/agent-my-agent-100", card["url"])
	assert.Equal(t, "kubernetes", card["deployment_type"])
	assert.Equal(t, "user-123", card["owner_id"])
	assert.Equal(t, "1.2.0", card["version"])
}

// TestResolveMinimalCard tests the fallback when no card ships and no
// generator is configured
func TestResolveMinimalCard(t *testing.T) {
	tarball := makeTarGz(t, map[string]string{"main.py": "print('hi')"})

	resolver := NewResolver(&fakeDownloader{data: tarball}, "", "")
	card := resolver.Resolve(context.Background(), &Request{
		AgentName: "my-agent",
		PublicURL: "http://gw.example/agents/agent-my-agent-100",
	})

	assert.Equal(t, "my-agent", card["name"])
	assert.Equal(t, "1.0.0", card["version"])
	assert.Empty(t, card["skills"])
	assert.Empty(t, card["tools"])
	assert.Empty(t, card["prompts"])
	assert.Equal(t, "my-agent", card["id"])
	assert.Equal(t, "kubernetes", card["deployment_type"])
	_, hasOwner := card["owner_id"]
	assert.False(t, hasOwner)
}

// TestResolveDownloadFailure tests that an unreachable backend still
// yields a registrable card
func TestResolveDownloadFailure(t *testing.T) {
	resolver := NewResolver(&fakeDownloader{err: errors.New("backend down")}, "", "")
	card := resolver.Resolve(context.Background(), &Request{
		AgentName: "my-agent",
		PublicURL: "http://gw.example/agents/agent-my-agent-100",
	})

	assert.Equal(t, "my-agent", card["id"])
	assert.Equal(t, "1.0.0", card["version"])
}

// TestResolveDownloadQualifier tests that the tarball download is
// qualified by DownloadVersion, not by the card's semantic version
func TestResolveDownloadQualifier(t *testing.T) {
	dl := &fakeDownloader{err: errors.New("no upload")}
	resolver := NewResolver(dl, "", "")

	resolver.Resolve(context.Background(), &Request{
		AgentName: "my-agent",
		Version:   "1.0.0",
	})
	assert.Empty(t, dl.gotVersion)

	resolver.Resolve(context.Background(), &Request{
		AgentName:       "my-agent",
		Version:         "1.2.0",
		DownloadVersion: "1.2.0",
	})
	assert.Equal(t, "1.2.0", dl.gotVersion)
}

// TestResolveMalformedShippedCard tests that a broken AgentCard.json
// falls through to the minimal card
func TestResolveMalformedShippedCard(t *testing.T) {
	tarball := makeTarGz(t, map[string]string{"AgentCard.json": "{not json"})

	resolver := NewResolver(&fakeDownloader{data: tarball}, "", "")
	card := resolver.Resolve(context.Background(), &Request{AgentName: "my-agent"})

	assert.Equal(t, "1.0.0", card["version"])
	assert.Equal(t, "my-agent", card["name"])
}

// TestResolveGeneratedCard tests invoking the external generator when
// no card ships
func TestResolveGeneratedCard(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("generator stub is a shell script")
	}

	generator := filepath.Join(t.TempDir(), "generator.sh")
	script := `#!/bin/sh
[ -n "$LLM_API_KEY" ] || exit 1
[ -d "$1" ] || exit 1
echo '{"name": "generated", "skills": ["analysed"]}'
`
	require.NoError(t, os.WriteFile(generator, []byte(script), 0755))

	tarball := makeTarGz(t, map[string]string{"main.py": "print('hi')"})
	resolver := NewResolver(&fakeDownloader{data: tarball}, generator, "sk-test")

	card := resolver.Resolve(context.Background(), &Request{
		AgentName: "my-agent",
		PublicURL: "http://gw.example/agents/agent-my-agent-100",
	})

	assert.Equal(t, "generated", card["name"])
	assert.Equal(t, "my-agent", card["id"])
}

// TestResolveGeneratorFailure tests falling back to the minimal card
// when the generator exits non-zero
func TestResolveGeneratorFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("generator stub is a shell script")
	}

	generator := filepath.Join(t.TempDir(), "generator.sh")
	require.NoError(t, os.WriteFile(generator, []byte("#!/bin/sh\nexit 7\n"), 0755))

	tarball := makeTarGz(t, map[string]string{"main.py": "print('hi')"})
	resolver := NewResolver(&fakeDownloader{data: tarball}, generator, "sk-test")

	card := resolver.Resolve(context.Background(), &Request{AgentName: "my-agent"})
	assert.Equal(t, "my-agent", card["name"])
	assert.Equal(t, "1.0.0", card["version"])
}
