// Package flagfile provides a feature.Storage that reads flag definitions
// from a YAML file and optionally reloads them when the file changes.
//
//	store, err := flagfile.Open("flags.yaml")
//	if err != nil {
//		return err
//	}
//	client := feature.NewClient(store)
//	store, _ = flagfile.Open("flags.yaml", flagfile.WithOnChange(client.Refresh))
//
// Watch monitors the file with fsnotify. Bursts of writes are debounced and
// a file that fails to parse leaves the last good definitions in place.
package flagfile
