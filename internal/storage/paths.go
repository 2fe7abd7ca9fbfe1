package storage

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// ObjectPath namespaces an upload as <user>/<publication>/<unix millis>_<file name>.
func ObjectPath(userID, publicationID string, at time.Time, fileName string) string {
	if userID == "" {
		userID = "anonymous"
	}
	return fmt.Sprintf("%s/%s/%d_%s", userID, publicationID, at.UnixMilli(), cleanFileName(fileName))
}

func cleanFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimSpace(path.Base(name))
	if name == "" || name == "." || name == "/" || name == ".." {
		return "file"
	}
	return strings.Join(strings.Fields(name), "_")
}
