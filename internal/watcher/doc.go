// Package watcher re-mines a transaction file each time it changes.
//
// Start runs the handler once for the file as it is, then keeps an fsnotify
// watch on the file's directory. Editors that save through a rename still
// trigger a run because the directory sees the create. Events for other
// files in the directory are dropped, and a burst of writes to the watched
// file collapses into one handler call once the file has been quiet for the
// debounce period. Handler errors are logged and the watch continues.
//
//	w, err := watcher.New("baskets.csv", remine, logger)
//	if err != nil {
//		return err
//	}
//	if err := w.Start(ctx); err != nil {
//		return err
//	}
//	<-ctx.Done()
//	return w.Stop()
package watcher
