// Package media implements a streaming media element: it fetches a remote
// audio resource over HTTP, decodes it through ffmpeg into an in-memory PCM
// buffer, and exposes a playback position, ready state, buffered ranges and
// element events. The element is consumed by the audio graph as a frame
// source.
package media
