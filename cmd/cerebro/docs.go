package main

// General API documentation for swaggo. Route operations are generated at
// runtime from the live route table and served at /docs/ and /openapi.json.
//
// @title           Gnosis Cerebro Data API
// @version         v1
// @description     Warehouse tables exposed as read endpoints derived from the dbt manifest.
//
// @contact.name   cerebro maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /v1
//
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
//
// @schemes http https
