package gitsource

import (
	"os"

	"github.com/brotherdetjr/deltabanana/faults"
	"github.com/itchyny/gojq"
	"gopkg.in/yaml.v3"
)

// Decode returns a parser that decodes the referenced yaml (or json) file
// into T. Use it with Get when the file's shape is known up front.
func Decode[T any]() ParseFunc {
	return func(localPath string, link FileLink) (any, error) {
		var out T
		if err := decodeFile(localPath, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
}

// JQ returns a parser that applies a gojq expression to the referenced yaml
// (or json) document and yields the expression's first result.
func JQ(expr string) (ParseFunc, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, faults.NewTypedError(faults.ValidationError, "invalid jq expression", err)
	}

	return func(localPath string, link FileLink) (any, error) {
		var doc any
		if err := decodeFile(localPath, &doc); err != nil {
			return nil, err
		}

		iter := query.Run(doc)
		value, ok := iter.Next()
		if !ok {
			return nil, faults.NewTypedError(faults.NotFoundError, "jq expression produced no result for "+link.Path, nil)
		}
		if evalErr, isErr := value.(error); isErr {
			return nil, faults.NewTypedError(faults.ValidationError, "jq evaluation failed for "+link.Path, evalErr)
		}
		return value, nil
	}, nil
}

func decodeFile(localPath string, out any) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		if os.IsNotExist(err) {
			return faults.NewTypedError(faults.NotFoundError, "file is absent in this revision: "+localPath, err)
		}
		return internalError("failed to read "+localPath, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return faults.NewTypedError(faults.ValidationError, "failed to decode "+localPath, err)
	}
	return nil
}
