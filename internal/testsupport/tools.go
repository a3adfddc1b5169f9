package testsupport

import (
	"fmt"
	"strings"
)

// YtDlpScript returns a shell body that stands in for yt-dlp. Probe calls
// (--dump-json) print meta, or fail like an unsupported URL when meta is
// empty. Download calls print progress and write the -o target with a .wav
// extension. A non-empty failStderr makes downloads print it and exit 1.
func YtDlpScript(meta, failStderr string) string {
	var b strings.Builder
	b.WriteString(`out=""
probe=0
prev=""
for arg in "$@"; do
  if [ "$prev" = "-o" ]; then out="$arg"; fi
  if [ "$arg" = "--dump-json" ]; then probe=1; fi
  prev="$arg"
done
if [ "$probe" = 1 ]; then
`)
	if meta == "" {
		b.WriteString("  echo 'ERROR: Unsupported URL' >&2\n  exit 1\n")
	} else {
		fmt.Fprintf(&b, "  cat <<'JSON'\n%s\nJSON\n  exit 0\n", meta)
	}
	b.WriteString("fi\n")
	if failStderr != "" {
		fmt.Fprintf(&b, "cat >&2 <<'ERR'\n%s\nERR\nexit 1\n", failStderr)
		return b.String()
	}
	b.WriteString(`echo "[download] Destination: $out"
echo "[download]  12.5% of 3.00MiB at 1.00MiB/s"
echo "[download] 100.0% of 3.00MiB"
out=$(printf '%s' "$out" | sed 's/%(ext)s/wav/')
printf 'RIFF' > "$out"
exit 0
`)
	return b.String()
}

// SeparatorScript returns a shell body that stands in for the separator
// program. It records its arguments to args.txt next to itself, prints
// stdoutLines and stderr, then exits with exitCode.
func SeparatorScript(stdoutLines []string, stderr string, exitCode int) string {
	var b strings.Builder
	b.WriteString(`printf '%s\n' "$@" > "$(dirname "$0")/args.txt"
`)
	if len(stdoutLines) > 0 {
		fmt.Fprintf(&b, "cat <<'OUT'\n%s\nOUT\n", strings.Join(stdoutLines, "\n"))
	}
	if stderr != "" {
		fmt.Fprintf(&b, "cat >&2 <<'ERR'\n%s\nERR\n", stderr)
	}
	fmt.Fprintf(&b, "exit %d\n", exitCode)
	return b.String()
}
