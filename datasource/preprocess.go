package datasource

// PruneEmptyStrings removes every key whose value is the empty string,
// recursing into nested maps. A nested map emptied by pruning is removed as
// well. The descriptor editor sends blanks for optional fields the user left
// unset, and a blank port or password must not reach the driver.
func PruneEmptyStrings(m map[string]any) {
	for key, value := range m {
		switch v := value.(type) {
		case string:
			if v == "" {
				delete(m, key)
			}
		case map[string]any:
			PruneEmptyStrings(v)

			if len(v) == 0 {
				delete(m, key)
			}
		}
	}
}
