// Package api serves the processed chain status and the mapping entities over REST.
// @title ChainProcessor API
// @version 1.0
// @description REST API for reading entities written by ChainProcessor mappings
// @contact.name API Support
// @contact.url https://github.com/goran-ethernal/ChainProcessor
// @license.name Apache 2.0
// @license.url https://www.apache.org/licenses/LICENSE-2.0.html
// @basePath /
// @schemes http https
package api
