/*
Package protocol defines the JSON frames exchanged between a terminal client
and the relay.

Every frame is a UTF-8 JSON object with a "type" discriminator.

Client to relay:

	{"type":"create","cols":80,"rows":24,"cwd":"/tmp"}
	{"type":"input","data":"ls -la\r"}
	{"type":"resize","cols":120,"rows":40}
	{"type":"ping"}

Relay to client:

	{"type":"created","terminalId":1}
	{"type":"output","data":"..."}
	{"type":"exit","exitCode":0}
	{"type":"error","message":"..."}
	{"type":"pong"}

Frames are encoded and decoded with sonic. Shell output is raw bytes, so
OutputDecoder turns it into valid UTF-8 without splitting multi-byte
sequences across output frames.
*/
package protocol
