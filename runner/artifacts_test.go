package runner

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ra2003/kphp/model"
)

func newArtifactsRunner(t *testing.T) *Runner {
	t.Helper()
	dir := t.TempDir()
	testPath := filepath.Join(dir, "case.php")
	require.NoError(t, os.WriteFile(testPath, []byte("@ok\n"), 0o644))
	test := model.NewTestFile(testPath, filepath.Join(dir, "tmp"), []string{"ok"}, nil)
	return NewRunner(zerolog.Nop(), Config{TestsDir: dir, KphpPath: "kphp"}, test)
}

func TestRecordArtifact(t *testing.T) {
	r := newArtifactsRunner(t)

	r.recordArtifact(model.SlotPhpStderr, 2, []byte("Warning: something\n"))

	artifact := r.artifacts.Get(model.SlotPhpStderr)
	require.Equal(t, filepath.Join(r.artifactsDir, "php_stderr"), artifact.File)
	require.Equal(t, 2, artifact.Priority)

	data, err := os.ReadFile(artifact.File)
	require.NoError(t, err)
	require.Equal(t, "Warning: something\n", string(data))
	require.False(t, r.artifacts.Empty())
}

func TestAdoptArtifactMovesFile(t *testing.T) {
	r := newArtifactsRunner(t)
	src := filepath.Join(t.TempDir(), "kphp_runtime_asan_log.1234")
	require.NoError(t, os.WriteFile(src, []byte("asan report"), 0o644))

	r.adoptArtifact(model.SlotKphpRuntimeAsanLog, 1, src)

	_, err := os.Stat(src)
	require.True(t, os.IsNotExist(err))

	artifact := r.artifacts.Get(model.SlotKphpRuntimeAsanLog)
	data, err := os.ReadFile(artifact.File)
	require.NoError(t, err)
	require.Equal(t, "asan report", string(data))
}

func TestRemoveArtifactsDirDropsStaleData(t *testing.T) {
	r := newArtifactsRunner(t)
	r.recordArtifact(model.SlotPhpStderr, 0, []byte("stale"))

	r.removeArtifactsDir()

	_, err := os.Stat(r.artifactsDir)
	require.True(t, os.IsNotExist(err))
}

func TestPrepareAsanEnv(t *testing.T) {
	r := newArtifactsRunner(t)
	dir := t.TempDir()
	stale := filepath.Join(dir, "kphp_build_asan_log.999")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	env, mask := r.prepareAsanEnv(dir, model.SlotKphpBuildAsanLog)

	// leftover logs from prior runs never survive
	_, err := os.Stat(stale)
	require.True(t, os.IsNotExist(err))

	require.Len(t, env, 1)
	require.True(t, strings.HasPrefix(env[0], "ASAN_OPTIONS="))
	require.Contains(t, env[0], "detect_leaks=0")
	require.Contains(t, env[0], "log_path="+filepath.Join(dir, "kphp_build_asan_log"))
	require.Equal(t, filepath.Join(dir, "kphp_build_asan_log")+".*", mask)
}

func TestSweepAsanLogsDiscardsNoise(t *testing.T) {
	r := newArtifactsRunner(t)
	dir := t.TempDir()
	log := filepath.Join(dir, "kphp_runtime_asan_log.42")
	banner := "==42==WARNING: ASan doesn't fully support makecontext/swapcontext functions and may produce false positives in some cases!\n" +
		"False positive error reports may follow\n"
	require.NoError(t, os.WriteFile(log, []byte(banner), 0o644))

	r.sweepAsanLogs(filepath.Join(dir, "kphp_runtime_asan_log")+".*", 0, model.SlotKphpRuntimeAsanLog)

	_, err := os.Stat(log)
	require.True(t, os.IsNotExist(err))
	require.True(t, r.artifacts.Empty())
}

func TestSweepAsanLogsAdoptsRealReport(t *testing.T) {
	r := newArtifactsRunner(t)
	dir := t.TempDir()
	log := filepath.Join(dir, "kphp_runtime_asan_log.42")
	require.NoError(t, os.WriteFile(log, []byte("==42==ERROR: AddressSanitizer: heap-use-after-free\n"), 0o644))

	r.sweepAsanLogs(filepath.Join(dir, "kphp_runtime_asan_log")+".*", 1, model.SlotKphpRuntimeAsanLog)

	artifact := r.artifacts.Get(model.SlotKphpRuntimeAsanLog)
	require.NotEmpty(t, artifact.File)
	require.Equal(t, 1, artifact.Priority)

	data, err := os.ReadFile(artifact.File)
	require.NoError(t, err)
	require.Contains(t, string(data), "heap-use-after-free")
}

func TestMoveFileAcrossDirs(t *testing.T) {
	src := filepath.Join(t.TempDir(), "src")
	dst := filepath.Join(t.TempDir(), "dst")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o644))

	require.NoError(t, moveFile(src, dst))

	_, err := os.Stat(src)
	require.True(t, os.IsNotExist(err))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))
}
