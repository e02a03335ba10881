package memory

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// Encoded holds the JSON payload of each bucket of a snapshot.
type Encoded map[string][]byte

// Encode marshals every bucket named in BucketNames.
func (s Snapshot) Encode() (Encoded, error) {
	buckets := s.Buckets()
	out := make(Encoded, len(BucketNames))
	for _, name := range BucketNames {
		data, err := json.Marshal(buckets[name])
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", name, err)
		}
		out[name] = data
	}
	return out, nil
}

// DecodeBucket fills the named bucket from payload. It reports false for
// unknown buckets and empty payloads, which are skipped.
func (s *Snapshot) DecodeBucket(name string, payload []byte) (bool, error) {
	target, ok := s.Buckets()[name]
	if !ok || len(payload) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return false, fmt.Errorf("decode %s: %w", name, err)
	}
	return true, nil
}

// Digests remembers the checksum of the payload a durable backend last
// wrote for each bucket.
type Digests map[string][sha256.Size]byte

// Pending lists, in BucketNames order, the buckets of enc whose payload
// differs from the recorded one.
func (d Digests) Pending(enc Encoded) []string {
	var names []string
	for _, name := range BucketNames {
		data, ok := enc[name]
		if !ok {
			continue
		}
		if prev, seen := d[name]; !seen || prev != sha256.Sum256(data) {
			names = append(names, name)
		}
	}
	return names
}

// Record marks the named buckets of enc as written.
func (d Digests) Record(enc Encoded, names ...string) {
	for _, name := range names {
		if data, ok := enc[name]; ok {
			d[name] = sha256.Sum256(data)
		}
	}
}
