package loader

import (
	"fmt"
	"io"
)

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("jsonschema loader: document exceeds %d bytes", limit)
	}
	return data, nil
}
