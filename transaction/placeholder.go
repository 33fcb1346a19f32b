package transaction

import (
	"bytes"
	"os"

	condacore "github.com/condacore/conda-core"
)

// rewritePlaceholder rewrites every occurrence of placeholder in the file
// at path with target: text files get a literal byte-for-byte substring
// replacement; binary files must preserve the original file length, so
// the replacement is null-padded (or truncated, if target happens to be
// longer) to placeholder's exact byte length.
func rewritePlaceholder(path, placeholder, target string, mode condacore.FileMode) error {
	if placeholder == "" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var replacement []byte
	switch mode {
	case condacore.FileModeBinary:
		replacement = binaryReplacement(target, len(placeholder))
	default:
		replacement = []byte(target)
	}

	rewritten := bytes.ReplaceAll(data, []byte(placeholder), replacement)
	return os.WriteFile(path, rewritten, info.Mode().Perm())
}

// binaryReplacement returns target truncated or null-padded to exactly
// width bytes, so a binary file's placeholder-bearing section never
// changes length (which would corrupt any offsets baked into the file).
func binaryReplacement(target string, width int) []byte {
	b := []byte(target)
	if len(b) >= width {
		return b[:width]
	}
	out := make([]byte, width)
	copy(out, b)
	return out
}

// rewriteShebang rewrites a script's "#!" first line if that line,
// interpreter arguments included, exceeds 127 bytes (the historical
// exec(2) shebang limit on many kernels), replacing it with
// "#!/usr/bin/env <interpreter>"; the interpreter's arguments are dropped.
func rewriteShebang(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(data) < 2 || data[0] != '#' || data[1] != '!' {
		return nil
	}
	nl := bytes.IndexByte(data, '\n')
	line := data
	if nl != -1 {
		line = data[:nl]
	}
	if len(line) <= 127 {
		return nil
	}
	interpreter := bytes.TrimSpace(line[2:])
	// Only the interpreter binary name, not any arguments, goes after
	// "env" per the /usr/bin/env convention.
	if sp := bytes.IndexByte(interpreter, ' '); sp != -1 {
		interpreter = interpreter[:sp]
	}
	newLine := append([]byte("#!/usr/bin/env "), interpreter...)

	var out []byte
	if nl != -1 {
		out = append(out, newLine...)
		out = append(out, data[nl:]...)
	} else {
		out = newLine
	}
	return os.WriteFile(path, out, info.Mode().Perm())
}
