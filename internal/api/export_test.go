package api

// MaxUploadBytes lets tests lower the upload limit to something practical.
var MaxUploadBytes = &maxUploadBytes
