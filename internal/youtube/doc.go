// Package youtube discovers new videos from channel Atom feeds and enriches
// items with metadata via yt-dlp. Feed data is authoritative for discovery;
// yt-dlp metadata is best effort.
package youtube
