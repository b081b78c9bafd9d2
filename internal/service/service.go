package service

import "github.com/m-mizutani/weblogparser/internal"

var logger = internal.Logger
