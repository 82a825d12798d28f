package janusproxy

import (
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jaevor/go-nanoid"
	"github.com/speps/go-hashids/v2"
)

var (
	nanoidGenerator   = mustNanoid(21)
	connectionCounter atomic.Uint64
)

func mustNanoid(length int) func() string {
	generate, err := nanoid.Standard(length)
	if err != nil {
		panic(err)
	}

	return generate
}

// GenerateID returns a short url-safe id used for channels.
func GenerateID() string {
	return nanoidGenerator()
}

// GenerateConnectionID encodes a process wide counter, so ids are short and never reused
// while the process runs.
func GenerateConnectionID() string {
	hd := hashids.NewData()
	hd.Salt = "janus proxy connection"
	hd.MinLength = 9
	h, err := hashids.NewWithData(hd)
	if err != nil {
		return GenerateID()
	}

	id, err := h.EncodeInt64([]int64{int64(connectionCounter.Add(1))})
	if err != nil {
		return GenerateID()
	}

	return id
}

// GenerateUUID is used for stream ids and proxy-originated transactions.
func GenerateUUID() string {
	return uuid.New().String()
}
