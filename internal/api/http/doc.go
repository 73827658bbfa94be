// Package http exposes the ability lifecycle controller over gin.
//
// Every mutating route waits for the controller loop to run the request
// and answers {"code": <result code>} with a status derived from the
// error class. Worker acknowledgements (POST /abilities/:token/done) are
// queued and answered with 202.
package http
