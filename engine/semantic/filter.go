package semantic

import (
	pb "github.com/qdrant/go-client/qdrant"
)

// Filter builds a gRPC query filter from a tag map: the conjunction of
// one keyword-equality condition per tag, each over the namespaced
// tag_{key} field. Returns nil for an empty map (no filtering).
func Filter(tags map[string]string) *pb.Filter {
	if len(tags) == 0 {
		return nil
	}

	must := make([]*pb.Condition, 0, len(tags))
	for k, v := range tags {
		must = append(must, fieldMatch(TagPrefix+k, v))
	}
	return &pb.Filter{Must: must}
}

// ScrollFilter renders the same conjunction in the REST scroll-filter
// shape. Each tag stays an independent condition so the pairs remain
// individually inspectable.
func ScrollFilter(tags map[string]string) map[string]any {
	if len(tags) == 0 {
		return nil
	}

	must := make([]any, 0, len(tags))
	for k, v := range tags {
		must = append(must, map[string]any{
			"key":   TagPrefix + k,
			"match": map[string]any{"value": v},
		})
	}
	return map[string]any{"must": must}
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}
