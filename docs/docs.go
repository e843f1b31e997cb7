// Package docs содержит OpenAPI-описание HTTP API для swagger UI на /docs/.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/accounts": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Accounts"],
                "summary": "Открыть аккаунт",
                "parameters": [{"description": "Аккаунт", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/open.Request"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.Account"}},
                    "409": {"description": "Аккаунт уже существует", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/purchases/checkout": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Purchases"],
                "summary": "Создать платёж за продукт",
                "parameters": [{"description": "Продукт", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/checkout.Request"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Checkout"}},
                    "409": {"description": "Лайфтайм уже есть", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "410": {"description": "Слоты закончились", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/purchases/confirm": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Purchases"],
                "summary": "Подтвердить покупку",
                "parameters": [{"description": "Платёж", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/confirm.Request"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.PurchaseResult"}},
                    "400": {"description": "Платёж не проведён", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "403": {"description": "Платёж другого аккаунта", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "410": {"description": "Слоты закончились, платёж возвращён", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "502": {"description": "Шлюз недоступен", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/credits/debit": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Credits"],
                "summary": "Списать кредиты",
                "parameters": [{"description": "Списание", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/debit.Request"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/debit.Result"}},
                    "402": {"description": "Недостаточно кредитов", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/credits/refund": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Credits"],
                "summary": "Вернуть списание",
                "parameters": [{"description": "Списание", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/refund.Request"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/refund.Result"}},
                    "409": {"description": "Уже возвращено", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/credits/balance": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Credits"],
                "summary": "Баланс и последние записи",
                "parameters": [{"type": "integer", "description": "Число записей", "name": "limit", "in": "query"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/balance.Result"}}
                }
            }
        },
        "/bonus/daily": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Bonus"],
                "summary": "Состояние ежедневного бонуса",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/bonus.Status"}},
                    "404": {"description": "Аккаунт не найден", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Один раз в сутки (UTC). Серия дней увеличивает бонус.",
                "produces": ["application/json"],
                "tags": ["Bonus"],
                "summary": "Получить ежедневный бонус",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/bonus.Claim"}},
                    "404": {"description": "Аккаунт не найден", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "409": {"description": "Бонус за сегодня уже получен", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/lifetime-slots": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Slots"],
                "summary": "Доступность лайфтайм-слотов",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.SlotAvailability"}}}
                }
            }
        },
        "/payments/webhook": {
            "post": {
                "consumes": ["application/json"],
                "tags": ["Payments"],
                "summary": "Уведомление платёжного шлюза",
                "description": "Подписанное HMAC-SHA256 уведомление. payment.succeeded запускает подтверждение покупки, subscription.canceled снимает тариф подписки.",
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Неверная подпись"},
                    "500": {"description": "Повторите доставку"}
                }
            }
        },
        "/admin/credits": {
            "post": {
                "security": [{"AdminSecret": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Ручное начисление кредитов",
                "parameters": [{"description": "Начисление", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/grant.Request"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/grant.Result"}},
                    "403": {"description": "Неверный секрет", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "open.Request": {"type": "object", "properties": {"email": {"type": "string"}, "referred_by": {"type": "string"}}},
        "checkout.Request": {"type": "object", "required": ["product"], "properties": {"product": {"type": "string", "example": "pack_75"}}},
        "confirm.Request": {"type": "object", "required": ["payment_ref"], "properties": {"payment_ref": {"type": "string"}}},
        "debit.Request": {"type": "object", "properties": {"amount": {"type": "integer", "example": 3}, "description": {"type": "string"}}},
        "debit.Result": {"type": "object", "properties": {"entry_id": {"type": "string"}, "balance": {"type": "integer"}}},
        "refund.Request": {"type": "object", "required": ["entry_id"], "properties": {"entry_id": {"type": "string"}, "reason": {"type": "string"}}},
        "refund.Result": {"type": "object", "properties": {"balance": {"type": "integer"}}},
        "grant.Request": {"type": "object", "required": ["account_id", "reason"], "properties": {"account_id": {"type": "string"}, "amount": {"type": "integer"}, "reason": {"type": "string"}, "external_ref": {"type": "string"}}},
        "grant.Result": {"type": "object", "properties": {"account_id": {"type": "string"}, "balance": {"type": "integer"}}},
        "balance.Result": {"type": "object", "properties": {"balance": {"type": "integer"}, "tier": {"type": "string"}, "is_lifetime_holder": {"type": "boolean"}, "transactions": {"type": "array", "items": {"$ref": "#/definitions/models.TransactionEntry"}}}},
        "models.Account": {"type": "object", "properties": {"id": {"type": "string"}, "email": {"type": "string"}, "balance": {"type": "integer"}, "tier": {"type": "string"}, "is_lifetime_holder": {"type": "boolean"}, "lifetime_spend": {"type": "string"}}},
        "models.Checkout": {"type": "object", "properties": {"payment_ref": {"type": "string"}, "confirmation_url": {"type": "string"}, "product": {"type": "string"}, "price": {"type": "string"}, "currency": {"type": "string"}, "credits": {"type": "integer"}}},
        "models.PurchaseResult": {"type": "object", "properties": {"payment_ref": {"type": "string"}, "credits": {"type": "integer"}, "balance": {"type": "integer"}, "tier": {"type": "string"}, "lifetime": {"type": "boolean"}}},
        "models.SlotAvailability": {"type": "object", "properties": {"tier_id": {"type": "string"}, "name": {"type": "string"}, "sold": {"type": "integer"}, "max": {"type": "integer"}, "available": {"type": "integer"}}},
        "models.TransactionEntry": {"type": "object", "properties": {"id": {"type": "string"}, "account_id": {"type": "string"}, "amount": {"type": "integer"}, "kind": {"type": "string"}, "external_ref": {"type": "string"}, "description": {"type": "string"}, "balance_after": {"type": "integer"}, "created_at": {"type": "string"}}},
        "bonus.Milestone": {"type": "object", "properties": {"days": {"type": "integer"}, "bonus": {"type": "integer"}}},
        "bonus.Reward": {"type": "object", "properties": {"credits": {"type": "integer"}, "streak": {"type": "integer"}, "milestone": {"type": "string"}}},
        "bonus.Status": {"type": "object", "properties": {"current_streak": {"type": "integer"}, "can_claim": {"type": "boolean"}, "last_claimed_on": {"type": "string", "example": "2026-05-01"}, "next": {"$ref": "#/definitions/bonus.Reward"}, "streak_will_reset": {"type": "boolean"}, "next_milestone": {"$ref": "#/definitions/bonus.Milestone"}}},
        "bonus.Claim": {"type": "object", "properties": {"credits": {"type": "integer"}, "streak": {"type": "integer"}, "milestone": {"type": "string"}, "balance": {"type": "integer"}, "next_milestone": {"$ref": "#/definitions/bonus.Milestone"}}},
        "response.ErrorResponse": {"type": "object", "properties": {"status": {"type": "string"}, "error": {"type": "string"}, "code": {"type": "string"}}}
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"},
        "AdminSecret": {"type": "apiKey", "name": "X-Admin-Secret", "in": "header"}
    }
}`

// SwaggerInfo метаданные API.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Credit Ledger API",
	Description:      "Кредитный журнал, покупки и лайфтайм-слоты.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
