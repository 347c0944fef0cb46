// Package deviceerr classifies failures talking to the matrix.
//
// Both device channels report errors as *DeviceError: the stream transport
// wraps dial and read failures, and the CGI client wraps request, HTTP status
// and decode failures. ClassifyNetworkError turns raw net errors into a
// category the driver can surface as a status message.
package deviceerr
