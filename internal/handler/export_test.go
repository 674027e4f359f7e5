package handler

var FormatUploadLimit = formatUploadLimit
