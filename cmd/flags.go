////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cmd

// This is a comprehensive list of CLI flag name constants. Organized by
// subcommand, with root level CLI flags at the top of the list. Pulling flags
// using Viper should use the constants defined here.
const (
	//////////////// Root flags ///////////////////////////////////////////////

	// Backend
	apiFlag     = "api"
	socketFlag  = "socket"
	timeoutFlag = "timeout"
	paramsFlag  = "params"

	// Local storage
	sessionFlag  = "session"
	passwordFlag = "password"

	// Log flags
	logLevelFlag = "logLevel"
	logFlag      = "log"

	// Config
	configFlag = "config"
	envFlag    = "env"

	///////////////// Login subcommand flags //////////////////////////////////
	phoneFlag = "phone"
	otpFlag   = "otp"

	///////////////// Conversation subcommand flags ///////////////////////////
	conversationFlag = "conversation"
	messageFlag      = "message"
	imageFlag        = "image"

	///////////////// Listen subcommand flags /////////////////////////////////
	waitTimeoutFlag = "waitTimeout"
)
