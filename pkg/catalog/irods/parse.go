package irods

import (
	"fmt"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/mirrorlake/catapult/pkg/catalog"
)

// Error tokens the icommands print when an operation cannot proceed.
// Depending on server version they surface on stderr or stdout.
const (
	tokenNoRows           = "CAT_NO_ROWS_FOUND"
	tokenItemExists       = "CATALOG_ALREADY_HAS_ITEM_BY_THAT_NAME"
	tokenCollectionExists = "CAT_NAME_EXISTS_AS_COLLECTION"
)

func isNoRows(stdout, stderr string) bool {
	return strings.Contains(stdout, tokenNoRows) || strings.Contains(stderr, tokenNoRows)
}

func isAlreadyExists(stdout, stderr string) bool {
	for _, token := range []string{tokenItemExists, tokenCollectionExists} {
		if strings.Contains(stdout, token) || strings.Contains(stderr, token) {
			return true
		}
	}
	return false
}

// diagnostic picks the most useful single line out of a failed command's
// output for error messages.
func diagnostic(stdout, stderr string) string {
	if line := firstLine(stderr); line != "" {
		return line
	}
	return firstLine(stdout)
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// escapeQuery escapes single quotes inside a general-query string literal.
func escapeQuery(s string) string {
	return strings.ReplaceAll(s, "'", `\'`)
}

// parseRows splits iquest attribute-per-line output into rows. Each
// selected attribute prints as "NAME = value" on its own line and a
// dashed line separates consecutive rows.
func parseRows(out string) []map[string]string {
	var rows []map[string]string
	current := map[string]string{}

	flush := func() {
		if len(current) > 0 {
			rows = append(rows, current)
			current = map[string]string{}
		}
	}

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "----") {
			flush()
			continue
		}
		name, value, ok := strings.Cut(line, " = ")
		if !ok {
			continue
		}
		current[name] = value
	}
	flush()

	return rows
}

// parseReplicas turns a DATA_CHECKSUM, DATA_SIZE query result into typed
// replicas, one per physical copy.
func parseReplicas(out string) ([]catalog.Replica, error) {
	rows := parseRows(out)
	replicas := make([]catalog.Replica, 0, len(rows))
	for _, row := range rows {
		size, err := strconv.ParseInt(row["DATA_SIZE"], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed DATA_SIZE %q: %w", row["DATA_SIZE"], err)
		}
		replicas = append(replicas, catalog.Replica{
			Checksum: normalizeChecksum(row["DATA_CHECKSUM"]),
			Size:     size,
		})
	}
	return replicas, nil
}

// normalizeChecksum strips the scheme prefix the catalog stores for
// SHA-256 digests, leaving the bare base64 payload local digests are
// compared against. Never-checksummed replicas report an empty string.
func normalizeChecksum(value string) string {
	return strings.TrimPrefix(value, "sha2:")
}

// parseCollections turns a COLL_NAME query result into a path set. The
// general query's LIKE treats "_" as a single-character wildcard, so
// lookalike matches are filtered back out here.
func parseCollections(out, prefix string) mapset.Set[string] {
	set := mapset.NewThreadUnsafeSet[string]()
	for _, row := range parseRows(out) {
		name := row["COLL_NAME"]
		if name == "" {
			continue
		}
		if !strings.HasPrefix(name, prefix+"/") {
			continue
		}
		set.Add(name)
	}
	return set
}
