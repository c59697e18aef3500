package http

import "github.com/gin-gonic/gin"

// RegisterPersonRoutes registra las rutas del directorio de personas.
func RegisterPersonRoutes(r *gin.Engine, handler *PersonHandler) {
	persons := r.Group("/persons")
	{
		persons.POST("", handler.CreatePerson)
		persons.GET("", handler.ListPersons)
		persons.GET("/:id", handler.GetPerson)
		persons.PUT("/:id", handler.UpdatePerson)
		persons.DELETE("/:id", handler.DeletePerson)
		persons.POST("/:id/contacts", handler.AddContact)
		persons.DELETE("/:id/contacts/:contactId", handler.RemoveContact)
	}
	r.GET("/cities", handler.ListCities)
}
