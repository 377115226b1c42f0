package store

import (
	"strconv"

	"github.com/anineesan/anineesan-server/internal/domain"
)

// Key prefixes. Every key the store writes starts with one of these.
const (
	recordPrefix   = "record:"
	snapshotPrefix = "corpus:"
)

var snapshotKey = []byte(snapshotPrefix + "latest")

// recordKey builds "record:{source}:{id}".
func recordKey(src domain.Source, id int) []byte {
	name := src.String()
	buf := make([]byte, 0, len(recordPrefix)+len(name)+12)
	buf = append(buf, recordPrefix...)
	buf = append(buf, name...)
	buf = append(buf, ':')
	return strconv.AppendInt(buf, int64(id), 10)
}

// recordSourcePrefix builds "record:{source}:" for listing one source.
func recordSourcePrefix(src domain.Source) []byte {
	return []byte(recordPrefix + src.String() + ":")
}
