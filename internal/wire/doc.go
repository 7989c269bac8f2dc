// Package wire converts command text to and from the double-nul-terminated
// token format carried in out-of-line message attachments.
//
// Encode tokenizes a command on unquoted spaces, strips every quote
// character, and terminates the buffer with two nul bytes. Decode walks a
// bounded byte view up to the first pair of nul bytes and renders each single
// nul as a line break, which is the form handlers and the key/value lookup in
// textutil consume.
//
// Decoding never reads past the slice it is given. Transports must capture
// the attachment into a length-known slice at receive time and hand that
// slice here.
package wire
