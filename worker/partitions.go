package worker

import "fmt"

// Partitions are the cache names owned by one worker version.
type Partitions struct {
	Version string
	Static  string
	Dynamic string
	Offline string
	Queue   string
}

func NewPartitions(prefix, version string) Partitions {
	return Partitions{
		Version: version,
		Static:  fmt.Sprintf("%s-static-%s", prefix, version),
		Dynamic: fmt.Sprintf("%s-dynamic-%s", prefix, version),
		Offline: fmt.Sprintf("%s-offline-%s", prefix, version),
		Queue:   fmt.Sprintf("%s-queue-%s", prefix, version),
	}
}

// Allowlist is every partition name the current version keeps on activation.
func (p Partitions) Allowlist() []string {
	return []string{p.Static, p.Dynamic, p.Offline, p.Queue}
}

func (p Partitions) allowed(name string) bool {
	for _, a := range p.Allowlist() {
		if a == name {
			return true
		}
	}
	return false
}

// OfflinePage is the document served when a navigation cannot reach the network.
const OfflinePage = "/offline.html"

// ShellManifest lists the app shell cached at install time.
var ShellManifest = []string{
	"/",
	"/index.html",
	OfflinePage,
	"/manifest.json",
	"/css/style.css",
	"/js/main.js",
	"/js/firebase-config.js",

	"/icons/icon-72x72.png",
	"/icons/icon-96x96.png",
	"/icons/icon-128x128.png",
	"/icons/icon-144x144.png",
	"/icons/icon-152x152.png",
	"/icons/icon-192x192.png",
	"/icons/icon-384x384.png",
	"/icons/icon-512x512.png",
	"/icons/badge-72x72.png",
	"/icons/responder-icon.png",
	"/icons/cancelled-icon.png",
	"/icons/arrived-icon.png",
	"/icons/resolved-icon.png",
	"/icons/view-icon.png",
	"/icons/dismiss-icon.png",
	"/icons/alert-icon.png",
}
