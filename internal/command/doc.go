// Package command recognizes console command frames and routes them to the
// radio.
//
// A frame is a JSON object with a "function" string and a "parameters"
// object. Three grammars are tried in order:
//
//	{"function":"ftm","parameters":{"ssid":"lab","count":16,"burst":4}}
//	{"function":"ftm","parameters":{"mac":"aa:bb:cc:dd:ee:ff","channel":6}}
//	{"function":"scan","parameters":{"ssid":"lab"}}
//
// Frames matching none of them are discarded without a reply.
package command
