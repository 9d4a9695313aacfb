// Package audio provides the output side of the player: a pull-model audio
// context rendering a small node graph (source, gain, destination) into an
// output device. Devices are backed by oto/v3 on real hardware or by a
// headless clock when no sound card is present.
//
// The context owns the audio clock. CurrentTime advances only while frames
// are actually rendered, so gain automation scheduled against it stays in
// step with what is heard.
package audio
