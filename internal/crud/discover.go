package crud

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/doonfrs/trinacrud/internal/authz"
	"github.com/doonfrs/trinacrud/internal/logging"
)

const packageScanLines = 20

var (
	fileSafeRe = regexp.MustCompile(`[^A-Za-z0-9_]`)
	packageRe  = regexp.MustCompile(`^package\s+([A-Za-z0-9_]+)`)
)

// Discover scans the configured model paths for candidate model definition
// files and returns descriptors for every candidate that passes the same
// verification as Resolve. One bad file never aborts the scan: unreadable
// files, files without a package declaration, unregistered or unsafe names
// are all skipped silently. With authorizedOnly, only models on which the
// actor holds at least one CRUD action survive.
func (r *Registry) Discover(ctx context.Context, gate authz.Gate, actor authz.Actor, filter string, authorizedOnly bool) ([]*Descriptor, error) {
	seen := map[string]struct{}{}
	var out []*Descriptor

	for _, dir := range r.cfg.ModelPaths {
		root, err := canonicalPath(dir)
		if err != nil {
			logging.WithError(err).Warnf("model path %q not usable, skipping", dir)
			continue
		}

		for _, candidate := range r.candidateFiles(root, filter) {
			d, ok := r.verifyCandidate(root, candidate)
			if !ok {
				continue
			}
			if _, dup := seen[d.Name]; dup {
				continue
			}
			if authorizedOnly {
				allowed, err := anyActionAllowed(ctx, gate, actor, d.Name)
				if err != nil {
					return nil, err
				}
				if !allowed {
					continue
				}
			}
			seen[d.Name] = struct{}{}
			out = append(out, d)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// candidateFiles lists the files to inspect under one canonical root. When
// a specific name is requested, only its last path segment is used, reduced
// to [A-Za-z0-9_]; an empty remainder aborts the lookup for that root.
func (r *Registry) candidateFiles(root, filter string) []string {
	if filter != "" {
		base := lastSegment(filter)
		base = fileSafeRe.ReplaceAllString(base, "")
		if base == "" {
			return nil
		}
		return []string{filepath.Join(root, snakeCase(base)+".go")}
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		out = append(out, filepath.Join(root, name))
	}
	return out
}

// verifyCandidate runs one file through the full resolution pipeline.
// The canonical path of the candidate must stay inside the canonical root,
// which defeats traversal through crafted names or symlinks.
func (r *Registry) verifyCandidate(root, path string) (d *Descriptor, ok bool) {
	// Column introspection must never take discovery down with it.
	defer func() {
		if rec := recover(); rec != nil {
			logging.Warnf("schema discovery panic on %s: %v", path, rec)
			d, ok = nil, false
		}
	}()

	canon, err := canonicalPath(path)
	if err != nil {
		return nil, false
	}
	if !strings.HasPrefix(canon, root+string(os.PathSeparator)) {
		return nil, false
	}

	pkg, found := readPackageName(canon)
	if !found {
		return nil, false
	}

	stem := strings.TrimSuffix(filepath.Base(canon), ".go")
	name := pkg + "." + exportedName(stem)
	desc, err := r.Resolve(name)
	if err != nil {
		return nil, false
	}
	return desc, true
}

func anyActionAllowed(ctx context.Context, gate authz.Gate, actor authz.Actor, model string) (bool, error) {
	for _, action := range Actions {
		ok, err := gate.HasModelPermission(ctx, actor, model, action.String())
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// canonicalPath resolves symlinks and relative segments so that prefix
// containment checks cannot be fooled.
func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// readPackageName looks for a package declaration within the first
// packageScanLines lines of the file.
func readPackageName(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for i := 0; i < packageScanLines && scanner.Scan(); i++ {
		if m := packageRe.FindStringSubmatch(strings.TrimSpace(scanner.Text())); m != nil {
			return m[1], true
		}
	}
	return "", false
}

func lastSegment(name string) string {
	idx := strings.LastIndexAny(name, `./\`)
	if idx < 0 {
		return name
	}
	return name[idx+1:]
}

// snakeCase maps an exported type name to its file stem: "AuditLog" -> "audit_log".
func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// exportedName maps a file stem to the type name it declares: "audit_log" -> "AuditLog".
func exportedName(stem string) string {
	parts := strings.Split(stem, "_")
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}
