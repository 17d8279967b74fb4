// Package httpwire implements the core of an HTTP/1.x wire codec: a pair of
// incremental byte-stream state machines (decoder and encoder) plus the
// aggregation, content-encoding and upgrade-handshake components that sit
// directly on top of them.
//
// Sub-packages cover the parts of the codec that are useful on their own:
// header holds the ordered, multi-valued header store; multipart holds the
// multipart/form-data and x-www-form-urlencoded body codec together with
// tiered part storage; contentcodec holds the pluggable content-encoding
// sandwich; upgrade holds the protocol-upgrade handshake; config and
// logging hold the ambient configuration and logging surfaces shared by
// all of the above.
package httpwire
