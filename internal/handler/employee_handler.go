package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/locvowork/employee_directory/internal/export"
	"github.com/locvowork/employee_directory/internal/service"
	"github.com/locvowork/employee_directory/internal/service/serviceutils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type EmployeeHandler struct {
	svc      service.EmployeeService
	exporter *export.Exporter
}

func NewEmployeeHandler(svc service.EmployeeService, exporter *export.Exporter) *EmployeeHandler {
	if exporter == nil {
		exporter = export.NewExporter(nil)
	}
	return &EmployeeHandler{svc: svc, exporter: exporter}
}

func (h *EmployeeHandler) HealthcheckHandler(c echo.Context) error {
	health := HealthJSON{Database: h.svc.Healthy(c.Request().Context())}
	status := http.StatusOK
	if !health.Database {
		status = http.StatusServiceUnavailable
	}
	return serviceutils.ResponseSuccess(c, status, "Health status", health)
}

func (h *EmployeeHandler) ListHandler(c echo.Context) error {
	employees, err := h.svc.GetActiveEmployees(c.Request().Context(), c.QueryParam("country"))
	if err != nil {
		return serviceutils.ResponseError(c, serviceutils.StatusOf(err), "Failed to list employees", err)
	}

	out := EmployeesJSON{Employees: make([]EmployeeJSON, len(employees))}
	for i, e := range employees {
		out.Employees[i] = toEmployeeJSON(e)
	}
	return serviceutils.ResponseSuccess(c, http.StatusOK, "Employees listed successfully", out)
}

func (h *EmployeeHandler) ListExtendedHandler(c echo.Context) error {
	aggs, err := h.svc.GetActiveEmployeesExtended(c.Request().Context(), c.QueryParam("country"))
	if err != nil {
		return serviceutils.ResponseError(c, serviceutils.StatusOf(err), "Failed to list employees", err)
	}

	out := EmployeesExtendedJSON{Employees: make([]EmployeeExtendedJSON, len(aggs))}
	for i, a := range aggs {
		out.Employees[i] = toEmployeeExtendedJSON(a)
	}
	return serviceutils.ResponseSuccess(c, http.StatusOK, "Employees listed successfully", out)
}

func (h *EmployeeHandler) GetHandler(c echo.Context) error {
	country := c.QueryParam("country")
	if country == "" {
		return serviceutils.ResponseError(c, http.StatusBadRequest, "Missing country", fmt.Errorf("query parameter country is required"))
	}

	agg, err := h.svc.GetByAliasAndCountry(c.Request().Context(), c.Param("alias"), country)
	if err != nil {
		return serviceutils.ResponseError(c, serviceutils.StatusOf(err), "Failed to get employee", err)
	}
	return serviceutils.ResponseSuccess(c, http.StatusOK, "Employee retrieved successfully", toEmployeeJSON(agg.Employee))
}

func (h *EmployeeHandler) GetExtendedHandler(c echo.Context) error {
	country := c.QueryParam("country")
	if country == "" {
		return serviceutils.ResponseError(c, http.StatusBadRequest, "Missing country", fmt.Errorf("query parameter country is required"))
	}

	agg, err := h.svc.GetByAliasAndCountry(c.Request().Context(), c.Param("alias"), country)
	if err != nil {
		return serviceutils.ResponseError(c, serviceutils.StatusOf(err), "Failed to get employee", err)
	}
	return serviceutils.ResponseSuccess(c, http.StatusOK, "Employee retrieved successfully", toEmployeeExtendedJSON(*agg))
}

func (h *EmployeeHandler) EmergencyContactHandler(c echo.Context) error {
	var req EmergencyContactJSON
	if err := c.Bind(&req); err != nil {
		return serviceutils.ResponseError(c, http.StatusBadRequest, "Invalid request body", err)
	}

	err := h.svc.AddOrUpdateEmergencyContactByAliasAndCountry(c.Request().Context(), c.Param("alias"), c.Param("country"), req.toDomain())
	if err != nil {
		return serviceutils.ResponseError(c, serviceutils.StatusOf(err), "Failed to save emergency contact", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *EmployeeHandler) AllergiesAndDietaryPreferencesHandler(c echo.Context) error {
	var req AllergiesAndDietaryPreferencesJSON
	if err := c.Bind(&req); err != nil {
		return serviceutils.ResponseError(c, http.StatusBadRequest, "Invalid request body", err)
	}

	err := h.svc.UpdateAllergiesAndDietaryPreferencesByAliasAndCountry(c.Request().Context(), c.Param("alias"), c.Param("country"), req.toDomain())
	if err != nil {
		return serviceutils.ResponseError(c, serviceutils.StatusOf(err), "Failed to save allergies and dietary preferences", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *EmployeeHandler) AllergiesHandler(c echo.Context) error {
	return serviceutils.ResponseSuccess(c, http.StatusOK, "Default allergies", h.svc.DefaultAllergies())
}

func (h *EmployeeHandler) DietaryPreferencesHandler(c echo.Context) error {
	return serviceutils.ResponseSuccess(c, http.StatusOK, "Dietary preferences", h.svc.DietaryPreferences())
}

func (h *EmployeeHandler) CompetenciesHandler(c echo.Context) error {
	competencies, err := h.svc.GetCompetencies(c.Request().Context(), c.QueryParam("alias"), c.QueryParam("country"))
	if err != nil {
		return serviceutils.ResponseError(c, serviceutils.StatusOf(err), "Failed to get competencies", err)
	}
	return serviceutils.ResponseSuccess(c, http.StatusOK, "Competencies retrieved successfully", stringList(competencies))
}

func (h *EmployeeHandler) CvHandler(c echo.Context) error {
	cv, err := h.svc.GetCv(c.Request().Context(), c.QueryParam("alias"), c.QueryParam("country"))
	if err != nil {
		return serviceutils.ResponseError(c, serviceutils.StatusOf(err), "Failed to get cv", err)
	}
	return serviceutils.ResponseSuccess(c, http.StatusOK, "Cv retrieved successfully", toCvJSON(cv))
}

func (h *EmployeeHandler) ProjectExperiencesHandler(c echo.Context) error {
	// both ?competencies=a,b and repeated ?competencies=a&competencies=b
	var competencies []string
	for _, v := range c.QueryParams()["competencies"] {
		competencies = append(competencies, strings.Split(v, ",")...)
	}

	experiences, err := h.svc.GetProjectExperiences(c.Request().Context(), c.QueryParam("alias"), c.QueryParam("country"), competencies)
	if err != nil {
		return serviceutils.ResponseError(c, serviceutils.StatusOf(err), "Failed to get project experiences", err)
	}
	return serviceutils.ResponseSuccess(c, http.StatusOK, "Project experiences retrieved successfully", toProjectExperiencesJSON(experiences))
}

func (h *EmployeeHandler) SearchHandler(c echo.Context) error {
	docs, err := h.svc.Search(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return serviceutils.ResponseError(c, serviceutils.StatusOf(err), "Search failed", err)
	}

	out := EmployeesJSON{Employees: make([]EmployeeJSON, len(docs))}
	for i, d := range docs {
		out.Employees[i] = docToEmployeeJSON(d)
	}
	return serviceutils.ResponseSuccess(c, http.StatusOK, "Search completed", out)
}

func (h *EmployeeHandler) ExportHandler(c echo.Context) error {
	aggs, err := h.svc.GetActiveEmployeesExtended(c.Request().Context(), c.QueryParam("country"))
	if err != nil {
		return serviceutils.ResponseError(c, serviceutils.StatusOf(err), "Failed to export employees", err)
	}

	filename := fmt.Sprintf("employees_%s.xlsx", time.Now().Format("20060102"))
	c.Response().Header().Set(echo.HeaderContentType, xlsxContentType)
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	c.Response().WriteHeader(http.StatusOK)
	return h.exporter.WriteEmployees(c.Response(), aggs)
}
